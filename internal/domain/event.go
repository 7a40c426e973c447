package domain

import (
	"strings"
	"time"
)

type DateKind int

const (
	DateSolar DateKind = iota
	DateLunar
)

// DateRule is the recurrence anchor of an event. For lunar events it is
// decided once at ingestion from the summary marker and never re-parsed
// from strings downstream.
type DateRule struct {
	Kind  DateKind
	Month int  // lunar anchor month, 1-12
	Day   int  // lunar anchor day, 1-30
	Leap  bool // anchor lies in the leap month
}

// Event is an immutable snapshot of a calendar event for one tick.
type Event struct {
	UID      string
	Title    string
	Start    time.Time
	End      time.Time
	AllDay   bool
	Location string
	Calendar string // display name of the source calendar
	RRule    string // raw RRULE value, empty for one-off events
	Yearly   bool   // RRULE FREQ=YEARLY
	Monthly  bool   // RRULE FREQ=MONTHLY
	Rule     DateRule
}

// IsLunar reports whether the event recurs on the lunar calendar.
func (e *Event) IsLunar() bool {
	return e.Rule.Kind == DateLunar
}

// IsBirthday reports whether the title mentions a birthday, which gets
// a festive prefix in notifications.
func (e *Event) IsBirthday() bool {
	return strings.Contains(e.Title, "생일") || strings.Contains(e.Title, "생신")
}

// Occurrence is a concrete materialized date of an event in the
// lookahead window.
type Occurrence struct {
	Event Event
	Date  time.Time // midnight in the configured zone
}
