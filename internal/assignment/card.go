package assignment

import (
	"html"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/freekieb7/go-duedate/internal/moodle"
	"github.com/microcosm-cc/bluemonday"
)

const (
	noDescription = "No description provided."
	snippetLength = 160
)

// Card is the view model of one event.
type Card struct {
	Event       moodle.Event
	Status      Status
	Due         time.Time
	Completed   bool
	Description template.HTML
	Snippet     string
}

// Sanitizer cleans the rich-text description Moodle returns. Descriptions
// come from course authors and may contain arbitrary markup.
type Sanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	rich := bluemonday.UGCPolicy()
	rich.RequireNoReferrerOnLinks(true)
	rich.AddTargetBlankToFullyQualifiedLinks(true)

	return &Sanitizer{
		rich:  rich,
		plain: bluemonday.StrictPolicy(),
	}
}

// HTML returns markup safe to embed in a page.
func (s *Sanitizer) HTML(raw string) template.HTML {
	clean := strings.TrimSpace(s.rich.Sanitize(raw))
	if clean == "" {
		return template.HTML(template.HTMLEscapeString(noDescription))
	}
	return template.HTML(clean)
}

// Text strips all markup and shortens the result to max runes.
func (s *Sanitizer) Text(raw string, max int) string {
	text := strings.Join(strings.Fields(html.UnescapeString(s.plain.Sanitize(raw))), " ")
	if text == "" {
		return noDescription
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max])) + "…"
}

// BuildCards classifies every event against now. completed may be nil.
func BuildCards(events []moodle.Event, now time.Time, completed map[int64]bool, sanitizer *Sanitizer) []Card {
	cards := make([]Card, 0, len(events))
	for _, event := range events {
		due := event.Due()
		cards = append(cards, Card{
			Event:       event,
			Status:      Classify(due, now),
			Due:         due,
			Completed:   completed[event.ID],
			Description: sanitizer.HTML(event.Description),
			Snippet:     sanitizer.Text(event.Description, snippetLength),
		})
	}
	return cards
}
