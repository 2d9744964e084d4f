package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/freekieb7/go-duedate/internal/assignment"
)

const (
	pageLogin       = "login"
	pageAssignments = "assignments"
	pageCourses     = "courses"
)

type pageView struct {
	Title     string
	CSRFToken string
	Username  string
	FeedError string
	DueSoon   []assignment.Card
}

type loginView struct {
	pageView
	Error      string
	Identifier string
}

type feedView struct {
	pageView
	Filter     assignment.Filter
	StatusTabs []statusTab
	Courses    []string
	Cards      []assignment.Card
	Groups     []assignment.CourseGroup
	Empty      string
	ReturnTo   string
}

// statusTab links to the assignments page with one status selected and the
// search and course kept as they are.
type statusTab struct {
	Status assignment.StatusFilter
	URL    string
	Active bool
}

func statusTabs(filter assignment.Filter) []statusTab {
	tabs := make([]statusTab, 0, len(assignment.StatusFilters))
	for _, status := range assignment.StatusFilters {
		target := filter
		target.Status = status

		link := routeRoot
		if query := target.Values().Encode(); query != "" {
			link += "?" + query
		}

		tabs = append(tabs, statusTab{Status: status, URL: link, Active: status == filter.Status})
	}
	return tabs
}

// cardData is what the "card" template sees.
type cardData struct {
	assignment.Card
	CSRFToken string
	ReturnTo  string
}

var templateFuncs = template.FuncMap{
	"dueDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
	"cardView": func(view feedView, card assignment.Card) cardData {
		return cardData{Card: card, CSRFToken: view.CSRFToken, ReturnTo: view.ReturnTo}
	},
}

func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)
	for _, page := range []string{pageLogin, pageAssignments, pageCourses} {
		tmpl, err := template.New("base").Funcs(templateFuncs).ParseFS(fsys, "base.html", "header.html", page+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template failed: %w", page, err)
		}
		templates[page] = tmpl
	}
	return templates, nil
}

func (h *UIHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	tmpl, ok := h.templates[page]
	if !ok {
		h.Logger.ErrorContext(r.Context(), "Unknown template", "page", page)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		h.Logger.ErrorContext(r.Context(), "Failed to render template", "page", page, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
