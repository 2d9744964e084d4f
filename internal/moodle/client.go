// Package moodle is a small client for the Moodle mobile web-service API.
package moodle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/freekieb7/go-duedate/internal/errors"
)

const (
	TokenPath = "login/token.php"
	RESTPath  = "webservice/rest/server.php"

	DefaultService = "moodle_mobile_app"

	FunctionActionEventsByTimesort = "core_calendar_get_action_events_by_timesort"

	ErrorCodeInvalidToken = "invalidtoken"

	maxBodyBytes = 4 << 20
)

type Options struct {
	BaseURL    string
	Service    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    *url.URL
	service    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(opts Options) (*Client, error) {
	baseURL, err := url.ParseRequestURI(opts.BaseURL)
	if err != nil {
		return nil, apperrors.ConfigError("invalid moodle base URL", err)
	}

	if opts.Service == "" {
		opts.Service = DefaultService
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		service:    opts.Service,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}, nil
}

// Token exchanges credentials for a web-service token. A response that carries
// an error or no token at all is returned as-is; only transport failures and
// undecodable bodies are reported as errors.
func (c *Client) Token(ctx context.Context, username, password string) (TokenResponse, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)
	params.Set("service", c.service)

	var resp TokenResponse
	if err := c.get(ctx, TokenPath, params, &resp); err != nil {
		return TokenResponse{}, err
	}
	return resp, nil
}

// ActionEvents lists upcoming action events sorted by time, starting at from.
func (c *Client) ActionEvents(ctx context.Context, token string, from time.Time, limit int) ([]Event, error) {
	params := url.Values{}
	params.Set("wstoken", token)
	params.Set("wsfunction", FunctionActionEventsByTimesort)
	params.Set("moodlewsrestformat", "json")
	params.Set("timesortfrom", strconv.FormatInt(from.Unix(), 10))
	params.Set("limitnum", strconv.Itoa(limit))

	var resp struct {
		EventsResponse
		Exception
	}
	if err := c.get(ctx, RESTPath, params, &resp); err != nil {
		return nil, err
	}

	if resp.Exception.Exception != "" || resp.ErrorCode != "" {
		if resp.ErrorCode == ErrorCodeInvalidToken {
			return nil, apperrors.InvalidTokenError(resp.Message, nil)
		}
		return nil, apperrors.UnexpectedResponseError(fmt.Sprintf("%s: %s", resp.ErrorCode, resp.Message), nil)
	}

	if resp.Events == nil {
		return []Event{}, nil
	}
	return resp.Events, nil
}

// Ping checks that the Moodle host answers HTTP at all.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL.String(), nil)
	if err != nil {
		return apperrors.InternalError("failed to build moodle request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.UpstreamUnavailableError("moodle is unreachable", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL.JoinPath(path)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return apperrors.InternalError("failed to build moodle request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Moodle request failed", "path", path, "error", err)
		return apperrors.UpstreamUnavailableError("moodle request failed", err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Moodle request completed",
		"path", path,
		"status_code", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return apperrors.UpstreamUnavailableError(fmt.Sprintf("moodle responded with status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.UpstreamUnavailableError("failed to read moodle response", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return apperrors.UnexpectedResponseError("moodle response is not valid JSON", err)
	}
	return nil
}
