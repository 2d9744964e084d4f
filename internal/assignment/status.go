// Package assignment turns Moodle action events into what the dashboard shows.
package assignment

import (
	"fmt"
	"time"
)

type Kind int

const (
	KindOverdue Kind = iota
	KindHours
	KindDays
)

// Tone selects the badge styling.
type Tone string

const (
	ToneAlert   Tone = "alert"
	ToneWarning Tone = "warning"
	ToneNormal  Tone = "normal"
)

const (
	day          = 24 * time.Hour
	warningUntil = 3 * day
)

type Status struct {
	Kind  Kind
	Tone  Tone
	Hours int
	Days  int
	Label string
}

func (s Status) Overdue() bool {
	return s.Kind == KindOverdue
}

// Classify buckets the time left until due. It depends only on its arguments,
// so callers pass the current time on every render.
func Classify(due, now time.Time) Status {
	remaining := due.Sub(now)

	switch {
	case remaining < 0:
		return Status{Kind: KindOverdue, Tone: ToneAlert, Label: "Overdue"}
	case remaining < day:
		hours := int(remaining / time.Hour)
		return Status{Kind: KindHours, Tone: ToneAlert, Hours: hours, Label: fmt.Sprintf("Due in %d hours", hours)}
	case remaining < warningUntil:
		days := int(remaining / day)
		return Status{Kind: KindDays, Tone: ToneWarning, Days: days, Label: fmt.Sprintf("%d days left", days)}
	default:
		days := int(remaining / day)
		return Status{Kind: KindDays, Tone: ToneNormal, Days: days, Label: fmt.Sprintf("%d days left", days)}
	}
}
