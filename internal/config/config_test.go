package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port: got %d want %d", cfg.Server.Port, 8080)
	}
	if cfg.Moodle.Service != "moodle_mobile_app" {
		t.Errorf("service: got %q", cfg.Moodle.Service)
	}
	if cfg.Moodle.EventLimit != 20 {
		t.Errorf("event limit: got %d want 20", cfg.Moodle.EventLimit)
	}
	if cfg.Session.TTL != 90*24*time.Hour {
		t.Errorf("session TTL: got %v want 90 days", cfg.Session.TTL)
	}
	if cfg.Session.CookieName != "moodle_token" {
		t.Errorf("cookie name: got %q", cfg.Session.CookieName)
	}
	if cfg.Session.Backend != SessionBackendCookie {
		t.Errorf("session backend: got %q", cfg.Session.Backend)
	}
	if cfg.Proxy.Prefix != "/moodle-api" {
		t.Errorf("proxy prefix: got %q", cfg.Proxy.Prefix)
	}
	if cfg.Feed.ShowErrors {
		t.Error("feed errors should be hidden by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("MOODLE_BASE_URL", "https://moodle.example.org")
	t.Setenv("MOODLE_LOOKBACK", "2160h")
	t.Setenv("PROXY_PREFIX", "/lms/")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("FEED_SHOW_ERRORS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Server.IsProduction() {
		t.Error("expected production environment")
	}
	if cfg.Moodle.BaseURL != "https://moodle.example.org" {
		t.Errorf("base URL: got %q", cfg.Moodle.BaseURL)
	}
	if cfg.Moodle.Lookback != 90*24*time.Hour {
		t.Errorf("lookback: got %v", cfg.Moodle.Lookback)
	}
	if cfg.Proxy.Prefix != "/lms" {
		t.Errorf("proxy prefix should lose its trailing slash, got %q", cfg.Proxy.Prefix)
	}
	if cfg.Session.Backend != SessionBackendRedis {
		t.Errorf("session backend: got %q", cfg.Session.Backend)
	}
	if !cfg.Feed.ShowErrors {
		t.Error("expected feed errors to be shown")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		message string
	}{
		{"port not a number", "SERVER_PORT", "eighty", "server port"},
		{"unknown environment", "SERVER_ENVIRONMENT", "staging", "server environment"},
		{"relative base URL", "MOODLE_BASE_URL", "lms.kiet.edu", "moodle base URL"},
		{"zero event limit", "MOODLE_EVENT_LIMIT", "0", "moodle event limit"},
		{"bad timeout", "MOODLE_REQUEST_TIMEOUT", "soon", "moodle request timeout"},
		{"root proxy prefix", "PROXY_PREFIX", "/", "proxy prefix"},
		{"unknown session backend", "SESSION_BACKEND", "memcached", "session backend"},
		{"bad bool", "FEED_SHOW_ERRORS", "maybe", "feed show errors"},
		{"zero request timeout", "MOODLE_REQUEST_TIMEOUT", "0s", "moodle request timeout"},
		{"negative request timeout", "MOODLE_REQUEST_TIMEOUT", "-5s", "moodle request timeout"},
		{"zero session TTL", "SESSION_TTL", "0s", "session TTL"},
		{"zero login requests", "RATE_LIMIT_LOGIN_REQUESTS", "0", "rate limit login requests"},
		{"negative proxy requests", "RATE_LIMIT_PROXY_REQUESTS", "-1", "rate limit proxy requests"},
		{"zero rate limit window", "RATE_LIMIT_WINDOW", "0s", "rate limit window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not mention %q", err, tt.message)
			}
		})
	}
}
