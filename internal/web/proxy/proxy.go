// Package proxy forwards /moodle-api/* to the configured Moodle host so
// browser scripts can call the web-service API from the same origin.
package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/freekieb7/go-duedate/internal/web/response"
)

const UnreachableMessage = "Moodle server is unreachable."

type Options struct {
	Prefix    string
	Target    *url.URL
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// New returns a handler that strips prefix and forwards the rest of the
// path, with the query unchanged, below target.
func New(opts Options) http.Handler {
	prefix := strings.TrimSuffix(opts.Prefix, "/")
	target := *opts.Target
	target.Path = strings.TrimSuffix(target.Path, "/")
	target.RawPath = ""

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(&target)

			// SetURL joined the full inbound path onto target; replace it.
			rest := strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.Path = target.Path + "/" + strings.TrimPrefix(rest, "/")
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery

			pr.Out.Header.Set("Accept", "application/json")
			// Our own cookies mean nothing to Moodle.
			pr.Out.Header.Del("Cookie")
			pr.SetXForwarded()
		},
		Transport: transport,
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del("Set-Cookie")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			opts.Logger.ErrorContext(r.Context(), "Moodle proxy request failed",
				"path", r.URL.Path,
				"error", err)
			response.ProxyError(w, UnreachableMessage)
		},
	}

	var handler http.Handler = rp
	if opts.Timeout > 0 {
		handler = withTimeout(rp, opts.Timeout)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodPost:
			handler.ServeHTTP(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD, POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func withTimeout(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
