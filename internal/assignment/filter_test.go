package assignment

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/go-duedate/internal/moodle"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func event(id int64, name, fullname, shortname string, due time.Time) moodle.Event {
	return moodle.Event{
		ID:       id,
		Name:     name,
		Course:   moodle.Course{ID: id * 10, FullName: fullname, ShortName: shortname},
		TimeSort: due.Unix(),
	}
}

func testEvents() []moodle.Event {
	return []moodle.Event{
		event(1, "Lab report", "Operating Systems", "OS", testNow.Add(-2*time.Hour)),
		event(2, "Quiz 4", "Discrete Mathematics", "DM", testNow.Add(5*time.Hour)),
		event(3, "Scheduler project", "Operating Systems", "OS", testNow.Add(4*24*time.Hour)),
		event(4, "Essay", "Technical Writing", "", testNow.Add(30*time.Hour)),
	}
}

func ids(events []moodle.Event) []int64 {
	var out []int64
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestFilterApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"zero filter keeps everything", Filter{}, []int64{1, 2, 3, 4}},
		{"search by name is case-insensitive", Filter{Query: "QUIZ"}, []int64{2}},
		{"search by course full name", Filter{Query: "operating"}, []int64{1, 3}},
		{"search ignores surrounding space", Filter{Query: "  essay "}, []int64{4}},
		{"overdue tab", Filter{Status: FilterOverdue}, []int64{1}},
		{"upcoming tab", Filter{Status: FilterUpcoming}, []int64{2, 3, 4}},
		{"course by short name", Filter{Course: "OS"}, []int64{1, 3}},
		{"course falls back to full name", Filter{Course: "Technical Writing"}, []int64{4}},
		{"combined", Filter{Query: "project", Status: FilterUpcoming, Course: "OS"}, []int64{3}},
		{"nothing matches", Filter{Query: "thesis"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(tt.filter.Apply(testEvents(), testNow))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestFilterDueNowIsUpcoming(t *testing.T) {
	events := []moodle.Event{event(9, "Now", "C", "C", testNow)}

	if got := (Filter{Status: FilterUpcoming}).Apply(events, testNow); len(got) != 1 {
		t.Errorf("an event due right now should be upcoming")
	}
	if got := (Filter{Status: FilterOverdue}).Apply(events, testNow); len(got) != 0 {
		t.Errorf("an event due right now should not be overdue")
	}
}

func TestParseStatusFilter(t *testing.T) {
	for input, want := range map[string]StatusFilter{
		"":         FilterAll,
		"all":      FilterAll,
		"upcoming": FilterUpcoming,
		"overdue":  FilterOverdue,
		"OVERDUE":  FilterAll,
		"done":     FilterAll,
	} {
		if got := ParseStatusFilter(input); got != want {
			t.Errorf("ParseStatusFilter(%q): got %q want %q", input, got, want)
		}
	}
}

func TestFilterIsZero(t *testing.T) {
	if !(Filter{Status: FilterAll, Course: CourseAll}).IsZero() {
		t.Error("all/all should be the zero filter")
	}
	if (Filter{Query: "x"}).IsZero() {
		t.Error("a query is not the zero filter")
	}
}

func TestFilterValues(t *testing.T) {
	tests := []struct {
		filter Filter
		want   string
	}{
		{Filter{Status: FilterAll, Course: CourseAll}, ""},
		{Filter{Query: " quiz ", Status: FilterOverdue}, "q=quiz&status=overdue"},
		{Filter{Status: FilterUpcoming, Course: "OS"}, "course=OS&status=upcoming"},
		{Filter{Query: "lab & report", Course: "Technical Writing"}, "course=Technical+Writing&q=lab+%26+report"},
	}

	for _, tt := range tests {
		if got := tt.filter.Values().Encode(); got != tt.want {
			t.Errorf("%+v: got %q want %q", tt.filter, got, tt.want)
		}
	}
}

func TestCourses(t *testing.T) {
	got := Courses(testEvents())
	want := []string{"OS", "DM", "Technical Writing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestGroupByCourse(t *testing.T) {
	cards := BuildCards(testEvents(), testNow, nil, NewSanitizer())
	groups := GroupByCourse(cards)

	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Name != "Operating Systems" || len(groups[0].Cards) != 2 {
		t.Errorf("unexpected first group %s with %d cards", groups[0].Name, len(groups[0].Cards))
	}
	if groups[1].Name != "Discrete Mathematics" || groups[2].Name != "Technical Writing" {
		t.Errorf("groups out of first-seen order: %s, %s", groups[1].Name, groups[2].Name)
	}
}

func TestDueWithin(t *testing.T) {
	got := ids(DueWithin(testEvents(), testNow, 24*time.Hour))
	if !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("got %v want [2]", got)
	}
}

func TestBuildCards(t *testing.T) {
	events := testEvents()
	events[1].Description = `<p>Bring a <b>calculator</b></p><script>alert(1)</script>`

	cards := BuildCards(events, testNow, map[int64]bool{3: true}, NewSanitizer())
	if len(cards) != len(events) {
		t.Fatalf("expected %d cards, got %d", len(events), len(cards))
	}

	if !cards[0].Status.Overdue() {
		t.Errorf("first card should be overdue, got %+v", cards[0].Status)
	}
	if !cards[2].Completed || cards[1].Completed {
		t.Error("completion marks not applied by event id")
	}

	description := string(cards[1].Description)
	if strings.Contains(description, "<script") {
		t.Errorf("script survived sanitization: %s", description)
	}
	if !strings.Contains(description, "<b>calculator</b>") {
		t.Errorf("harmless markup should survive: %s", description)
	}
	if cards[1].Snippet != "Bring a calculator" {
		t.Errorf("snippet: got %q", cards[1].Snippet)
	}
	if cards[0].Snippet != noDescription {
		t.Errorf("empty description should use the placeholder, got %q", cards[0].Snippet)
	}
}

func TestSanitizerTextTruncates(t *testing.T) {
	s := NewSanitizer()
	got := s.Text("<p>"+strings.Repeat("word ", 100)+"</p>", 20)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected an ellipsis, got %q", got)
	}
	if n := len([]rune(got)); n > 21 {
		t.Errorf("snippet too long: %d runes", n)
	}
	if got := s.Text("Fish &amp; chips", 50); got != "Fish & chips" {
		t.Errorf("entities should be decoded once, got %q", got)
	}
}
