package moodle

import "time"

// TokenResponse is the body returned by login/token.php.
type TokenResponse struct {
	Token        string  `json:"token,omitempty"`
	PrivateToken *string `json:"privatetoken,omitempty"`
	Error        string  `json:"error,omitempty"`
	ErrorCode    string  `json:"errorcode,omitempty"`
}

type Course struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullname"`
	ShortName string `json:"shortname"`
}

type Action struct {
	Name       string `json:"name"`
	ItemCount  int    `json:"itemcount"`
	Actionable bool   `json:"actionable"`
}

// Event is one entry of core_calendar_get_action_events_by_timesort.
type Event struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Course      Course `json:"course"`
	TimeSort    int64  `json:"timesort"`
	URL         string `json:"url"`
	Action      Action `json:"action"`
}

// Due returns the due timestamp of the event.
func (e Event) Due() time.Time {
	return time.Unix(e.TimeSort, 0)
}

type EventsResponse struct {
	Events []Event `json:"events"`
}

// Exception is the error body of the REST web-service endpoint.
type Exception struct {
	Exception string `json:"exception,omitempty"`
	ErrorCode string `json:"errorcode,omitempty"`
	Message   string `json:"message,omitempty"`
}
