package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/freekieb7/go-duedate/internal/errors"
	"github.com/freekieb7/go-duedate/internal/web/response"
)

type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  KeyFunction
}

// KeyFunction derives the rate limiting key from the request.
type KeyFunction func(r *http.Request) string

// KeyByIP keys on the client address. Forwarding headers are honoured only
// when trustProxy is set, since clients can forge them.
func KeyByIP(prefix string, trustProxy bool) KeyFunction {
	return func(r *http.Request) string {
		return prefix + ":" + GetClientIP(r, trustProxy)
	}
}

// GetClientIP extracts the client IP from the request.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}

	return r.RemoteAddr
}

func setRateLimitHeaders(w http.ResponseWriter, limit RateLimit, remaining int) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Window", limit.Window.String())
}

// RateLimitMiddleware answers 429 with a JSON error once the key runs out of budget.
func RateLimitMiddleware(rateLimiter RateLimiter, limit RateLimit, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limit.KeyFunc(r)
			if key == "" {
				key = "unknown"
			}

			allowed, err := rateLimiter.Allow(r.Context(), key, limit.Requests, limit.Window)
			if err != nil {
				// Fail open.
				logger.ErrorContext(r.Context(), "Rate limiter failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining, _ := rateLimiter.GetRemaining(r.Context(), key, limit.Requests, limit.Window)
			setRateLimitHeaders(w, limit, remaining)

			if !allowed {
				logger.WarnContext(r.Context(), "Rate limit exceeded", "key", key, "path", r.URL.Path)
				response.ErrorResponse(w, apperrors.RateLimitedError("Rate limit exceeded", nil), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
