package assignment

import (
	"net/url"
	"strings"
	"time"

	"github.com/freekieb7/go-duedate/internal/moodle"
)

type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterUpcoming StatusFilter = "upcoming"
	FilterOverdue  StatusFilter = "overdue"
)

// StatusFilters lists the tabs in display order.
var StatusFilters = []StatusFilter{FilterAll, FilterUpcoming, FilterOverdue}

// ParseStatusFilter falls back to FilterAll for anything unknown.
func ParseStatusFilter(s string) StatusFilter {
	switch StatusFilter(s) {
	case FilterUpcoming, FilterOverdue:
		return StatusFilter(s)
	}
	return FilterAll
}

// CourseAll selects every course.
const CourseAll = "all"

type Filter struct {
	Query  string
	Status StatusFilter
	Course string
}

func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && (f.Status == "" || f.Status == FilterAll) && (f.Course == "" || f.Course == CourseAll)
}

// Values encodes the filter as the query string of the assignments page,
// leaving out criteria that select everything.
func (f Filter) Values() url.Values {
	values := url.Values{}
	if q := strings.TrimSpace(f.Query); q != "" {
		values.Set("q", q)
	}
	if f.Status != "" && f.Status != FilterAll {
		values.Set("status", string(f.Status))
	}
	if f.Course != "" && f.Course != CourseAll {
		values.Set("course", f.Course)
	}
	return values
}

// Apply keeps the events matching every criterion, preserving order.
func (f Filter) Apply(events []moodle.Event, now time.Time) []moodle.Event {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	matched := make([]moodle.Event, 0, len(events))
	for _, event := range events {
		if query != "" &&
			!strings.Contains(strings.ToLower(event.Name), query) &&
			!strings.Contains(strings.ToLower(event.Course.FullName), query) {
			continue
		}

		if f.Course != "" && f.Course != CourseAll && CourseKey(event) != f.Course {
			continue
		}

		due := event.Due()
		switch f.Status {
		case FilterOverdue:
			if !due.Before(now) {
				continue
			}
		case FilterUpcoming:
			if due.Before(now) {
				continue
			}
		}

		matched = append(matched, event)
	}
	return matched
}

// CourseKey identifies the course of an event in the course filter.
func CourseKey(event moodle.Event) string {
	if event.Course.ShortName != "" {
		return event.Course.ShortName
	}
	return event.Course.FullName
}

// Courses returns the distinct course keys in first-seen order.
func Courses(events []moodle.Event) []string {
	seen := make(map[string]struct{})
	var courses []string
	for _, event := range events {
		key := CourseKey(event)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		courses = append(courses, key)
	}
	return courses
}

type CourseGroup struct {
	Name  string
	Cards []Card
}

// GroupByCourse groups cards by course full name in first-seen order.
func GroupByCourse(cards []Card) []CourseGroup {
	index := make(map[string]int)
	var groups []CourseGroup
	for _, card := range cards {
		name := card.Event.Course.FullName
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, CourseGroup{Name: name})
		}
		groups[i].Cards = append(groups[i].Cards, card)
	}
	return groups
}

// DueWithin returns the events that are not yet due but will be within window.
func DueWithin(events []moodle.Event, now time.Time, window time.Duration) []moodle.Event {
	var soon []moodle.Event
	deadline := now.Add(window)
	for _, event := range events {
		due := event.Due()
		if due.After(now) && due.Before(deadline) {
			soon = append(soon, event)
		}
	}
	return soon
}
