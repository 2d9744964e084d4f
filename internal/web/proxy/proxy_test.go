package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestProxy(t *testing.T, target string) http.Handler {
	t.Helper()

	u, err := url.Parse(target)
	if err != nil {
		t.Fatal(err)
	}
	return New(Options{
		Prefix:  "/moodle-api",
		Target:  u,
		Timeout: time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestProxyForwards(t *testing.T) {
	var got *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		http.SetCookie(w, &http.Cookie{Name: "MoodleSession", Value: "x"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"abc"}`))
	}))
	defer upstream.Close()

	proxy := newTestProxy(t, upstream.URL+"/moodle")

	req := httptest.NewRequest(http.MethodGet, "/moodle-api/login/token.php?username=u&password=p&service=moodle_mobile_app", nil)
	req.AddCookie(&http.Cookie{Name: "moodle_token", Value: "secret"})
	rr := httptest.NewRecorder()
	proxy.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != `{"token":"abc"}` {
		t.Errorf("body not passed through: %q", rr.Body.String())
	}
	if rr.Header().Get("Set-Cookie") != "" {
		t.Error("upstream cookies must not reach the browser")
	}

	if got.URL.Path != "/moodle/login/token.php" {
		t.Errorf("unexpected upstream path %q", got.URL.Path)
	}
	if got.URL.Query().Get("username") != "u" || got.URL.Query().Get("service") != "moodle_mobile_app" {
		t.Errorf("query not forwarded: %q", got.URL.RawQuery)
	}
	if got.Header.Get("Accept") != "application/json" {
		t.Errorf("unexpected Accept %q", got.Header.Get("Accept"))
	}
	if got.Header.Get("Cookie") != "" {
		t.Error("session cookie leaked upstream")
	}
}

func TestProxyUpstreamStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	rr := httptest.NewRecorder()
	newTestProxy(t, upstream.URL+"/moodle").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/moodle-api/missing.php", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestProxyUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	rr := httptest.NewRecorder()
	newTestProxy(t, target+"/moodle").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/moodle-api/login/token.php", nil))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != UnreachableMessage {
		t.Errorf("unexpected body %v", body)
	}
}

func TestProxyRejectsOtherMethods(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestProxy(t, "http://127.0.0.1:1/moodle").ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/moodle-api/x", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
