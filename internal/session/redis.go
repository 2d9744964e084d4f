package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/freekieb7/go-duedate/internal/cache"
	"github.com/google/uuid"
)

// RedisProvider keeps the token server side. The browser only holds a random
// session id.
type RedisProvider struct {
	Cache      *cache.Service
	CookieName string
	Secure     bool
	Logger     *slog.Logger
}

func NewRedisProvider(cacheService *cache.Service, secure bool, logger *slog.Logger) *RedisProvider {
	return &RedisProvider{
		Cache:      cacheService,
		CookieName: DefaultSessionCookie,
		Secure:     secure,
		Logger:     logger,
	}
}

func (p *RedisProvider) Open(w http.ResponseWriter, r *http.Request) Store {
	return &redisStore{provider: p, w: w, r: r}
}

type redisRecord struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type redisStore struct {
	provider *RedisProvider
	w        http.ResponseWriter
	r        *http.Request

	loaded bool
	id     string
	record *redisRecord
}

func sessionKey(id string) string {
	return "session:" + id
}

func (s *redisStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	cookie, err := s.r.Cookie(s.provider.CookieName)
	if err != nil {
		s.loaded = true
		return nil
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		s.provider.Logger.WarnContext(ctx, "Ignoring malformed session cookie")
		s.loaded = true
		return nil
	}

	var record redisRecord
	if err := s.provider.Cache.Get(ctx, sessionKey(cookie.Value), &record); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			return err
		}
		s.id = cookie.Value
		s.loaded = true
		return nil
	}

	s.id = cookie.Value
	s.record = &record
	s.loaded = true
	return nil
}

func (s *redisStore) Token(ctx context.Context) (string, error) {
	if err := s.load(ctx); err != nil {
		return "", err
	}
	if s.record == nil || s.record.Token == "" {
		return "", ErrNoToken
	}
	return s.record.Token, nil
}

func (s *redisStore) Username(ctx context.Context) (string, error) {
	if _, err := s.Token(ctx); err != nil {
		return "", err
	}
	return s.record.Username, nil
}

// Save always issues a fresh session id so an id handed out before login is
// never promoted to an authenticated one.
func (s *redisStore) Save(ctx context.Context, token, username string, ttl time.Duration) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.load(ctx); err != nil {
		return err
	}

	if s.id != "" {
		if err := s.provider.Cache.Delete(ctx, sessionKey(s.id)); err != nil {
			s.provider.Logger.WarnContext(ctx, "Failed to delete previous session", "error", err)
		}
	}

	id := uuid.NewString()
	record := &redisRecord{Token: token, Username: username}
	if err := s.provider.Cache.Set(ctx, sessionKey(id), record, ttl); err != nil {
		return err
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     s.provider.CookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.provider.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.id = id
	s.record = record
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}

	var err error
	if s.id != "" {
		err = s.provider.Cache.Delete(ctx, sessionKey(s.id))
	}

	// The cookie goes regardless, a dangling redis key expires on its own.
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.provider.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.provider.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.id = ""
	s.record = nil
	return err
}
