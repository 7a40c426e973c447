package domain

import (
	"fmt"
	"strings"
	"time"
)

// Offset is a reminder lead time relative to an occurrence date. The
// set is fixed; configuration selects the active subset.
type Offset string

const (
	OffsetSameDay     Offset = "day"
	OffsetDayBefore   Offset = "eve"
	OffsetWeekBefore  Offset = "week"
	OffsetMonthBefore Offset = "month"
)

// AllOffsets lists every recognized offset.
var AllOffsets = []Offset{OffsetSameDay, OffsetDayBefore, OffsetWeekBefore, OffsetMonthBefore}

func (o Offset) Valid() bool {
	switch o {
	case OffsetSameDay, OffsetDayBefore, OffsetWeekBefore, OffsetMonthBefore:
		return true
	}
	return false
}

// TriggerDate returns the calendar day on which a reminder with this
// offset becomes due for the given occurrence date.
func (o Offset) TriggerDate(occurrence time.Time) time.Time {
	switch o {
	case OffsetDayBefore:
		return occurrence.AddDate(0, 0, -1)
	case OffsetWeekBefore:
		return occurrence.AddDate(0, 0, -7)
	case OffsetMonthBefore:
		return occurrence.AddDate(0, -1, 0)
	default:
		return occurrence
	}
}

// Label returns the Korean phrase used in notification messages.
func (o Offset) Label() string {
	switch o {
	case OffsetSameDay:
		return "오늘"
	case OffsetDayBefore:
		return "내일"
	case OffsetWeekBefore:
		return "1주일 후"
	case OffsetMonthBefore:
		return "1개월 후"
	}
	return string(o)
}

// ParseOffsets parses a comma-separated offset list from configuration.
func ParseOffsets(s string) ([]Offset, error) {
	var offsets []Offset
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		o := Offset(part)
		if !o.Valid() {
			return nil, fmt.Errorf("unknown reminder offset: %q", part)
		}
		offsets = append(offsets, o)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("no reminder offsets configured")
	}
	return offsets, nil
}

// SentNotification records one dispatched reminder. The
// (EventUID, Offset, TargetDate) triple is the dedup key.
type SentNotification struct {
	EventUID   string
	Offset     Offset
	TargetDate string // occurrence date, YYYY-MM-DD
	SentAt     time.Time
}

// DueReminder is a reminder the evaluator decided should fire now.
type DueReminder struct {
	Event      Event
	Offset     Offset
	Occurrence time.Time
}

// Key returns the dedup key components for this reminder.
func (r *DueReminder) Key() (uid string, offset Offset, targetDate string) {
	return r.Event.UID, r.Offset, r.Occurrence.Format("2006-01-02")
}
