package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

const (
	CSRFCookieName = "duedate_csrf"
	CSRFFieldName  = "csrf_token"
)

type csrfContextKey struct{}

// CSRFToken returns the token forms must echo back, or "" outside the CSRF middleware.
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey{}).(string)
	return token
}

// CSRF protects unsafe methods with a double-submit cookie. The token lives in
// a cookie and every form posts it back in CSRFFieldName.
func CSRF(logger *slog.Logger, secure bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
				token = cookie.Value
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				if token == "" {
					token = uuid.NewString()
					http.SetCookie(w, &http.Cookie{
						Name:     CSRFCookieName,
						Value:    token,
						Path:     "/",
						HttpOnly: true,
						Secure:   secure,
						SameSite: http.SameSiteStrictMode,
					})
				}
			default:
				if token == "" {
					logger.WarnContext(r.Context(), "Missing CSRF cookie", "path", r.URL.Path)
					w.WriteHeader(http.StatusForbidden)
					return
				}

				submitted := r.PostFormValue(CSRFFieldName)
				if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
					logger.WarnContext(r.Context(), "Invalid CSRF token", "path", r.URL.Path)
					w.WriteHeader(http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey{}, token)))
		})
	}
}
