package session

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// CookieProvider stores the token itself in a cookie, the way the browser
// client always did.
type CookieProvider struct {
	TokenCookie    string
	UsernameCookie string
	Secure         bool
}

func NewCookieProvider(tokenCookie string, secure bool) CookieProvider {
	if tokenCookie == "" {
		tokenCookie = DefaultTokenCookie
	}
	return CookieProvider{
		TokenCookie:    tokenCookie,
		UsernameCookie: DefaultUsernameCookie,
		Secure:         secure,
	}
}

func (p CookieProvider) Open(w http.ResponseWriter, r *http.Request) Store {
	return &cookieStore{provider: p, w: w, r: r}
}

// cookieStore remembers what it wrote so reads later in the same request see it.
type cookieStore struct {
	provider CookieProvider
	w        http.ResponseWriter
	r        *http.Request

	written  bool
	token    string
	username string
}

func (s *cookieStore) Token(ctx context.Context) (string, error) {
	if s.written {
		if s.token == "" {
			return "", ErrNoToken
		}
		return s.token, nil
	}

	cookie, err := s.r.Cookie(s.provider.TokenCookie)
	if err != nil || cookie.Value == "" {
		return "", ErrNoToken
	}
	return cookie.Value, nil
}

func (s *cookieStore) Username(ctx context.Context) (string, error) {
	if _, err := s.Token(ctx); err != nil {
		return "", err
	}
	if s.written {
		return s.username, nil
	}

	cookie, err := s.r.Cookie(s.provider.UsernameCookie)
	if err != nil {
		return "", nil
	}
	username, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return "", nil
	}
	return username, nil
}

func (s *cookieStore) Save(ctx context.Context, token, username string, ttl time.Duration) error {
	if token == "" {
		return ErrEmptyToken
	}

	expires := time.Now().Add(ttl)
	http.SetCookie(s.w, s.cookie(s.provider.TokenCookie, token, expires, int(ttl.Seconds())))
	http.SetCookie(s.w, s.cookie(s.provider.UsernameCookie, url.QueryEscape(username), expires, int(ttl.Seconds())))

	s.written = true
	s.token = token
	s.username = username
	return nil
}

func (s *cookieStore) Clear(ctx context.Context) error {
	http.SetCookie(s.w, s.cookie(s.provider.TokenCookie, "", time.Unix(0, 0), -1))
	http.SetCookie(s.w, s.cookie(s.provider.UsernameCookie, "", time.Unix(0, 0), -1))

	s.written = true
	s.token = ""
	s.username = ""
	return nil
}

func (s *cookieStore) cookie(name, value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.provider.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
