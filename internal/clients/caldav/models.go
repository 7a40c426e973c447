package caldav

import "time"

// Calendar is one calendar collection on the server.
type Calendar struct {
	Path        string
	DisplayName string
}

// Event is a raw VEVENT as fetched from the server. Recurrence stays a
// plain RRULE string here; classification happens at ingestion.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	RRule       string // e.g. "FREQ=YEARLY"
	Calendar    string // display name of the source calendar
	Path        string // resource path, used for deletes
}
