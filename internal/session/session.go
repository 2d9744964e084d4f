// Package session keeps the Moodle web-service token of a browser between requests.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	DefaultTTL            = 90 * 24 * time.Hour
	DefaultTokenCookie    = "moodle_token"
	DefaultUsernameCookie = "moodle_username"
	DefaultSessionCookie  = "moodle_session"
)

var (
	ErrNoToken    = errors.New("session: no token")
	ErrEmptyToken = errors.New("session: empty token")
)

// Store persists the token issued to one browser, together with the username
// it was issued for.
type Store interface {
	// Token returns ErrNoToken when no token is stored.
	Token(ctx context.Context) (string, error)
	Username(ctx context.Context) (string, error)
	Save(ctx context.Context, token, username string, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Provider hands out the Store belonging to the browser behind a request.
type Provider interface {
	Open(w http.ResponseWriter, r *http.Request) Store
}

type contextKey struct{}

func WithStore(ctx context.Context, store Store) context.Context {
	return context.WithValue(ctx, contextKey{}, store)
}

func FromContext(ctx context.Context) (Store, bool) {
	store, ok := ctx.Value(contextKey{}).(Store)
	return store, ok
}

// MaskToken masks a token for logging (shows only first 8 characters)
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}
