package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freekieb7/go-duedate/internal/web/response"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimitMiddleware_Integration(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rateLimiter, _ := newTestRateLimiter(t)

	limit := RateLimit{
		Requests: 2,
		Window:   time.Minute,
		KeyFunc:  KeyByIP("proxy", false),
	}

	rateLimitedHandler := RateLimitMiddleware(rateLimiter, limit, discardLogger())(handler)

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := 0; i < limit.Requests; i++ {
			req := httptest.NewRequest(http.MethodGet, "/moodle-api/x", nil)
			req.RemoteAddr = "192.168.1.1:12345"

			rr := httptest.NewRecorder()
			rateLimitedHandler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("request %d: expected status %d, got %d", i+1, http.StatusOK, rr.Code)
			}
			if rr.Header().Get("X-RateLimit-Limit") != "2" {
				t.Fatalf("expected X-RateLimit-Limit header to be '2', got '%s'", rr.Header().Get("X-RateLimit-Limit"))
			}
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/moodle-api/x", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		rr := httptest.NewRecorder()
		rateLimitedHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
		}

		var body response.APIResponse
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Status != "error" {
			t.Errorf("unexpected body: %+v", body)
		}
	})

	t.Run("forged forwarding header is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/moodle-api/x", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.9")

		rr := httptest.NewRecorder()
		rateLimitedHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
		}
	})

	t.Run("other clients are unaffected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/moodle-api/x", nil)
		req.RemoteAddr = "192.168.1.2:12345"

		rr := httptest.NewRecorder()
		rateLimitedHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "10.0.0.1:5555", nil, false, "10.0.0.1"},
		{"untrusted forwarded for", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "203.0.113.9"}, false, "10.0.0.1"},
		{"trusted forwarded for", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, true, "203.0.113.9"},
		{"trusted real ip", "10.0.0.1:5555", map[string]string{"X-Real-IP": " 203.0.113.7 "}, true, "203.0.113.7"},
		{"remote addr without port", "10.0.0.1", nil, false, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if got := GetClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("got %q want %q", got, tt.want)
			}
		})
	}
}
