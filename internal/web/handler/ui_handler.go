package handler

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freekieb7/go-duedate/internal/assignment"
	"github.com/freekieb7/go-duedate/internal/config"
	apperrors "github.com/freekieb7/go-duedate/internal/errors"
	"github.com/freekieb7/go-duedate/internal/login"
	"github.com/freekieb7/go-duedate/internal/moodle"
	"github.com/freekieb7/go-duedate/internal/session"
	"github.com/freekieb7/go-duedate/internal/web/middleware"
	"github.com/freekieb7/go-duedate/internal/web/response"
	"github.com/freekieb7/go-duedate/web"
)

const (
	routeRoot     = "/"
	routeLogin    = "/login"
	routeLogout   = "/logout"
	routeCourses  = "/courses"
	routeComplete = "/assignments/{id}/complete"

	dueSoonWindow = 24 * time.Hour
	maxFormBytes  = 64 << 10

	messageAllCaughtUp  = "All caught up!"
	messageNoOverdue    = "You have no overdue work!"
	messageSessionSaved = "Unable to keep you signed in. Please try again."
)

// Authenticator turns credentials into a Moodle token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// EventSource lists the upcoming action events of a token holder.
type EventSource interface {
	ActionEvents(ctx context.Context, token string, from time.Time, limit int) ([]moodle.Event, error)
}

// CompletionStore keeps the "done" marks of each user.
type CompletionStore interface {
	Toggle(ctx context.Context, owner string, eventID int64) (bool, error)
	Completed(ctx context.Context, owner string) (map[int64]bool, error)
}

type UIHandler struct {
	Config     *config.Config
	Logger     *slog.Logger
	Sessions   session.Provider
	Auth       Authenticator
	Events     EventSource
	Completion CompletionStore
	Limiter    middleware.RateLimiter
	Sanitizer  *assignment.Sanitizer
	Now        func() time.Time

	templates map[string]*template.Template
}

func NewUIHandler(cfg *config.Config, logger *slog.Logger, sessions session.Provider, auth Authenticator, events EventSource, completion CompletionStore, limiter middleware.RateLimiter) (*UIHandler, error) {
	return newUIHandler(cfg, logger, sessions, auth, events, completion, limiter, web.GetTemplateFS())
}

func newUIHandler(cfg *config.Config, logger *slog.Logger, sessions session.Provider, auth Authenticator, events EventSource, completion CompletionStore, limiter middleware.RateLimiter, templateFS fs.FS) (*UIHandler, error) {
	templates, err := parseTemplates(templateFS)
	if err != nil {
		return nil, err
	}

	return &UIHandler{
		Config:     cfg,
		Logger:     logger,
		Sessions:   sessions,
		Auth:       auth,
		Events:     events,
		Completion: completion,
		Limiter:    limiter,
		Sanitizer:  assignment.NewSanitizer(),
		Now:        time.Now,
		templates:  templates,
	}, nil
}

func (h *UIHandler) RegisterRoutes(mux *http.ServeMux) {
	production := h.Config.Server.IsProduction()
	securityMiddleware := middleware.SecurityHeaders(middleware.DefaultSecurityHeaders(production))

	pageChain := middleware.Chain(
		securityMiddleware,
		middleware.LimitBody(maxFormBytes),
		middleware.Session(h.Sessions),
		middleware.CSRF(h.Logger, production),
	)

	mux.Handle("GET /static/", securityMiddleware(http.StripPrefix("/static/", web.NewStaticHandler())))

	mux.Handle("GET /{$}", pageChain(http.HandlerFunc(h.HandleRoot)))
	mux.Handle("POST "+routeLogin, pageChain(http.HandlerFunc(h.HandleLoginPost)))
	mux.Handle("GET "+routeLogin, pageChain(http.HandlerFunc(h.redirectRoot)))
	mux.Handle("POST "+routeLogout, pageChain(http.HandlerFunc(h.HandleLogout)))
	mux.Handle("GET "+routeCourses, pageChain(http.HandlerFunc(h.HandleCourses)))
	mux.Handle("POST "+routeComplete, pageChain(http.HandlerFunc(h.HandleToggleComplete)))
}

// store returns the session store the middleware attached, opening one when
// the handler runs outside the middleware chain.
func (h *UIHandler) store(w http.ResponseWriter, r *http.Request) session.Store {
	if store, ok := session.FromContext(r.Context()); ok {
		return store
	}
	return h.Sessions.Open(w, r)
}

// token resolves the session state. An empty token means Anonymous.
func (h *UIHandler) token(ctx context.Context, store session.Store) string {
	token, err := store.Token(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoToken) {
			h.Logger.ErrorContext(ctx, "Failed to read session token", "error", err)
		}
		return ""
	}
	return token
}

func (h *UIHandler) redirectRoot(w http.ResponseWriter, r *http.Request) {
	response.Redirect(w, http.StatusSeeOther, routeRoot)
}

// HandleRoot renders the login form to anonymous visitors and the
// assignments dashboard to everyone holding a token.
func (h *UIHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	store := h.store(w, r)

	token := h.token(r.Context(), store)
	if token == "" {
		h.renderLogin(w, r, http.StatusOK, "", "")
		return
	}

	feed, ok := h.loadFeed(w, r, store, token)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := assignment.Filter{
		Query:  strings.TrimSpace(query.Get("q")),
		Status: assignment.ParseStatusFilter(query.Get("status")),
		Course: query.Get("course"),
	}
	if filter.Course == "" {
		filter.Course = assignment.CourseAll
	}

	matched := filter.Apply(feed.events, feed.now)

	view := feedView{
		pageView:   h.pageView(r, "Assignments", feed),
		Filter:     filter,
		StatusTabs: statusTabs(filter),
		Courses:    assignment.Courses(feed.events),
		Cards:      assignment.BuildCards(matched, feed.now, feed.completed, h.Sanitizer),
		ReturnTo:   r.URL.RequestURI(),
	}

	switch {
	case len(feed.events) == 0:
		view.Empty = messageAllCaughtUp
	case len(matched) == 0 && filter.Status == assignment.FilterOverdue:
		view.Empty = messageNoOverdue
	case len(matched) == 0 && filter.Query != "":
		view.Empty = `No matches found for "` + filter.Query + `".`
	case len(matched) == 0:
		view.Empty = messageAllCaughtUp
	}

	h.render(w, r, http.StatusOK, pageAssignments, view)
}

// HandleCourses lists every fetched event grouped by course.
func (h *UIHandler) HandleCourses(w http.ResponseWriter, r *http.Request) {
	store := h.store(w, r)

	token := h.token(r.Context(), store)
	if token == "" {
		response.Redirect(w, http.StatusSeeOther, routeRoot)
		return
	}

	feed, ok := h.loadFeed(w, r, store, token)
	if !ok {
		return
	}

	cards := assignment.BuildCards(feed.events, feed.now, feed.completed, h.Sanitizer)
	view := feedView{
		pageView: h.pageView(r, "Courses", feed),
		Groups:   assignment.GroupByCourse(cards),
		ReturnTo: routeCourses,
	}
	if len(feed.events) == 0 {
		view.Empty = messageAllCaughtUp
	}

	h.render(w, r, http.StatusOK, pageCourses, view)
}

func (h *UIHandler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	if h.Config.RateLimit.Enabled && h.Limiter != nil {
		key := middleware.KeyByIP("login", h.Config.Server.TrustProxy)(r)
		allowed, err := h.Limiter.Allow(ctx, key, h.Config.RateLimit.LoginRequests, h.Config.RateLimit.Window)
		if err != nil {
			h.Logger.ErrorContext(ctx, "Login rate limiter failed", "error", err)
		} else if !allowed {
			h.Logger.WarnContext(ctx, "Login rate limit exceeded", "key", key)
			err := apperrors.RateLimitedError("login rate limit exceeded", nil)
			h.renderLogin(w, r, apperrors.GetHTTPCode(err), login.Message(err), username)
			return
		}
	}

	token, err := h.Auth.Login(ctx, username, password)
	if err != nil {
		h.renderLogin(w, r, apperrors.GetHTTPCode(err), login.Message(err), username)
		return
	}

	store := h.store(w, r)
	if err := store.Save(ctx, token, username, h.Config.Session.TTL); err != nil {
		h.Logger.ErrorContext(ctx, "Failed to save session", "username", username, "error", err)
		h.renderLogin(w, r, http.StatusInternalServerError, messageSessionSaved, username)
		return
	}

	h.Logger.InfoContext(ctx, "User signed in", "username", username, "token", session.MaskToken(token))
	response.Redirect(w, http.StatusSeeOther, routeRoot)
}

// HandleLogout clears the session before sending the browser back to the root.
func (h *UIHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store(w, r).Clear(ctx); err != nil {
		h.Logger.ErrorContext(ctx, "Failed to clear session during logout", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.Logger.InfoContext(ctx, "User signed out")
	response.Redirect(w, http.StatusSeeOther, routeRoot)
}

func (h *UIHandler) HandleToggleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := h.store(w, r)

	if h.token(ctx, store) == "" {
		response.Redirect(w, http.StatusSeeOther, routeRoot)
		return
	}

	eventID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || eventID <= 0 {
		h.Logger.WarnContext(ctx, "Invalid assignment id", "id", r.PathValue("id"))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	owner, err := store.Username(ctx)
	if err != nil || owner == "" {
		h.Logger.WarnContext(ctx, "Session has no username, cannot store completion", "error", err)
		response.Redirect(w, http.StatusSeeOther, routeRoot)
		return
	}

	done, err := h.Completion.Toggle(ctx, owner, eventID)
	if err != nil {
		h.Logger.ErrorContext(ctx, "Failed to toggle completion", "event_id", eventID, "error", err)
	} else {
		h.Logger.InfoContext(ctx, "Toggled completion", "event_id", eventID, "completed", done)
	}

	response.Redirect(w, http.StatusSeeOther, safeReturnPath(r.PostFormValue("return_to")))
}

// safeReturnPath only lets local paths through so the form cannot redirect off-site.
func safeReturnPath(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return routeRoot
	}
	return path
}

type feed struct {
	now       time.Time
	username  string
	events    []moodle.Event
	completed map[int64]bool
	feedError string
}

// loadFeed fetches the events of token. It returns false when it has already
// answered the request, which happens when the token turned out to be invalid
// or the session changed while the fetch was in flight.
func (h *UIHandler) loadFeed(w http.ResponseWriter, r *http.Request, store session.Store, token string) (feed, bool) {
	ctx := r.Context()
	now := h.Now()
	from := now.Add(-h.Config.Moodle.Lookback).Truncate(time.Second)

	fetchCtx, cancel := context.WithTimeout(ctx, h.Config.Moodle.RequestTimeout)
	events, err := h.Events.ActionEvents(fetchCtx, token, from, h.Config.Moodle.EventLimit)
	cancel()

	// Late response guard: the browser left, or the session moved on. Only a
	// server-side backend can see another request's logout; cookies are fixed
	// for the lifetime of this request.
	if ctx.Err() != nil {
		h.Logger.DebugContext(ctx, "Discarding events, request ended during fetch")
		return feed{}, false
	}
	if current := h.token(ctx, h.Sessions.Open(w, r)); current != token {
		h.Logger.InfoContext(ctx, "Discarding events, session changed during fetch")
		response.Redirect(w, http.StatusSeeOther, routeRoot)
		return feed{}, false
	}

	result := feed{now: now}
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeInvalidToken) {
			h.Logger.InfoContext(ctx, "Moodle rejected the stored token, signing out", "token", session.MaskToken(token))
			if err := store.Clear(ctx); err != nil {
				h.Logger.ErrorContext(ctx, "Failed to clear rejected token", "error", err)
			}
			response.Redirect(w, http.StatusSeeOther, routeRoot)
			return feed{}, false
		}

		h.Logger.WarnContext(ctx, "Failed to fetch assignments", "error", err)
		if h.Config.Feed.ShowErrors {
			result.feedError = feedErrorMessage(err)
		}
		events = nil
	}
	result.events = events

	username, err := store.Username(ctx)
	if err != nil {
		h.Logger.WarnContext(ctx, "Failed to read username", "error", err)
	}
	result.username = username

	if username != "" && h.Completion != nil {
		completed, err := h.Completion.Completed(ctx, username)
		if err != nil {
			h.Logger.ErrorContext(ctx, "Failed to load completions", "error", err)
		}
		result.completed = completed
	}

	return result, true
}

func feedErrorMessage(err error) string {
	if apperrors.IsType(err, apperrors.CodeUpstreamUnavailable) {
		return login.MessageUnreachable
	}
	return login.MessageUnexpected
}

func (h *UIHandler) pageView(r *http.Request, title string, feed feed) pageView {
	var soon []moodle.Event
	for _, event := range assignment.DueWithin(feed.events, feed.now, dueSoonWindow) {
		if !feed.completed[event.ID] {
			soon = append(soon, event)
		}
	}

	return pageView{
		Title:     title,
		CSRFToken: middleware.CSRFToken(r.Context()),
		Username:  feed.username,
		FeedError: feed.feedError,
		DueSoon:   assignment.BuildCards(soon, feed.now, feed.completed, h.Sanitizer),
	}
}

func (h *UIHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, message, identifier string) {
	h.render(w, r, status, pageLogin, loginView{
		pageView: pageView{
			Title:     "Sign in",
			CSRFToken: middleware.CSRFToken(r.Context()),
		},
		Error:      message,
		Identifier: identifier,
	})
}
