package middleware

import (
	"net/http"

	"github.com/freekieb7/go-duedate/internal/session"
)

// Session opens the session store of the browser behind each request and
// puts it on the request context.
func Session(provider session.Provider) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := provider.Open(w, r)
			next.ServeHTTP(w, r.WithContext(session.WithStore(r.Context(), store)))
		})
	}
}
