package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/dhkang/dalbot/internal/clients/caldav"
	"github.com/dhkang/dalbot/internal/domain"
	"github.com/dhkang/dalbot/internal/lunar"
)

// lookaheadMonths bounds how far ahead occurrences are materialized.
// It must cover the longest reminder offset (1 month) with margin.
const lookaheadMonths = 2

// CalendarService fetches events from CalDAV and materializes concrete
// occurrence dates, resolving lunar anchors through the conversion table.
type CalendarService struct {
	client       *caldav.Client
	timezone     *time.Location
	yearMin      int
	yearMax      int
	calendarName string
}

func NewCalendarService(client *caldav.Client, tz *time.Location, yearMin, yearMax int, calendarName string) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		client:       client,
		timezone:     tz,
		yearMin:      yearMin,
		yearMax:      yearMax,
		calendarName: calendarName,
	}
}

// IsConfigured returns true if the CalDAV client has credentials.
func (s *CalendarService) IsConfigured() bool {
	return s.client != nil && s.client.IsConfigured()
}

// Matches "(음력 3월 15일)", "(음력 윤6월 1일)", "(음 4/8)" and similar
// summary markers.
var lunarMarkerRe = regexp.MustCompile(`\(음력?\s*(윤)?\s?(\d{1,2})[월/.]\s?(\d{1,2})일?\)`)

// ParseLunarMarker extracts the lunar (month, day, leap) anchor from an
// event summary. ok is false when no marker is present or the numbers
// are not a plausible lunar date.
func ParseLunarMarker(summary string) (month, day int, leap, ok bool) {
	m := lunarMarkerRe.FindStringSubmatch(summary)
	if m == nil {
		return 0, 0, false, false
	}
	month, _ = strconv.Atoi(m[2])
	day, _ = strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 30 {
		return 0, 0, false, false
	}
	return month, day, m[1] == "윤", true
}

// Classify converts a raw VEVENT into a domain event. The lunar-or-solar
// decision is made exactly once here; downstream code reads the rule.
func Classify(ev caldav.Event, tz *time.Location) domain.Event {
	e := domain.Event{
		UID:      ev.UID,
		Title:    ev.Summary,
		Start:    ev.StartTime.In(tz),
		End:      ev.EndTime.In(tz),
		AllDay:   ev.AllDay,
		Location: ev.Location,
		Calendar: ev.Calendar,
		RRule:    ev.RRule,
		Yearly:   strings.Contains(ev.RRule, "FREQ=YEARLY"),
		Monthly:  strings.Contains(ev.RRule, "FREQ=MONTHLY"),
	}

	if e.Yearly {
		if month, day, leap, ok := ParseLunarMarker(ev.Summary); ok {
			e.Rule = domain.DateRule{Kind: domain.DateLunar, Month: month, Day: day, Leap: leap}
		}
	}

	return e
}

// lunarSolarDate converts a lunar anchor to its solar date in the target
// year, at midnight in the configured zone.
func (s *CalendarService) lunarSolarDate(rule domain.DateRule, year int) (time.Time, error) {
	if year < s.yearMin || year > s.yearMax {
		return time.Time{}, lunar.ErrOutOfRange
	}
	ld := lunar.Date{Year: year, Month: rule.Month, Day: rule.Day, Leap: rule.Leap}
	t, err := ld.Solar()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.timezone), nil
}

// NextLunarOccurrence resolves a lunar anchor to its next concrete solar
// date on or after from. A year in which the anchor day does not exist
// (leap-month anchor, or day 30 in a short month) is skipped, never
// shifted to an adjacent day. The candidate walk starts one lunar year
// back: late lunar months of year N-1 fall in January and February of
// solar year N.
func (s *CalendarService) NextLunarOccurrence(rule domain.DateRule, from time.Time) (time.Time, error) {
	fromDay := dateOnly(from, s.timezone)
	startYear := fromDay.Year() - 1
	if startYear < s.yearMin {
		startYear = s.yearMin
	}
	for year := startYear; year <= fromDay.Year()+1; year++ {
		occ, err := s.lunarSolarDate(rule, year)
		if errors.Is(err, lunar.ErrNoSuchDay) {
			continue
		}
		if err != nil {
			return time.Time{}, err
		}
		if !occ.Before(fromDay) {
			return occ, nil
		}
	}
	return time.Time{}, lunar.ErrNoSuchDay
}

// FetchEvents returns classified events whose occurrences may fall in
// the lookahead window starting at now.
func (s *CalendarService) FetchEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	from := dateOnly(now, s.timezone)
	to := from.AddDate(0, lookaheadMonths, 0)

	raw, err := s.client.GetAllEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	events := make([]domain.Event, 0, len(raw))
	for _, ev := range raw {
		events = append(events, Classify(ev, s.timezone))
	}
	return events, nil
}

// Occurrences materializes concrete dates for the given events inside
// the lookahead window. Lunar conversion failures skip that event's
// occurrence and never abort the tick.
func (s *CalendarService) Occurrences(events []domain.Event, now time.Time) []domain.Occurrence {
	from := dateOnly(now, s.timezone)
	to := from.AddDate(0, lookaheadMonths, 0)

	var occs []domain.Occurrence
	for _, e := range events {
		for _, date := range s.eventDates(e, from, to) {
			occs = append(occs, domain.Occurrence{Event: e, Date: date})
		}
	}

	sort.Slice(occs, func(i, j int) bool { return occs[i].Date.Before(occs[j].Date) })
	return occs
}

func (s *CalendarService) eventDates(e domain.Event, from, to time.Time) []time.Time {
	if e.IsLunar() {
		occ, err := s.NextLunarOccurrence(e.Rule, from)
		if err != nil {
			// Out-of-range and nonexistent-day anchors skip the year.
			log.Printf("Lunar occurrence skipped for %q: %v", e.Title, err)
			return nil
		}
		if occ.Before(to) {
			return []time.Time{occ}
		}
		return nil
	}

	if e.RRule != "" {
		return s.expandRecurring(e, from, to)
	}

	date := dateOnly(e.Start, s.timezone)
	if !date.Before(from) && date.Before(to) {
		return []time.Time{date}
	}
	return nil
}

// expandRecurring expands a solar RRULE inside the window. The raw rule
// string is parsed whole so INTERVAL, BYxxx, UNTIL and COUNT survive.
func (s *CalendarService) expandRecurring(e domain.Event, from, to time.Time) []time.Time {
	r, err := rrule.StrToRRule(e.RRule)
	if err != nil {
		log.Printf("RRULE parse failed for %q: %v", e.Title, err)
		return nil
	}
	r.DTStart(e.Start)

	var dates []time.Time
	for _, inst := range r.Between(from.AddDate(0, 0, -1), to, true) {
		date := dateOnly(inst, s.timezone)
		if !date.Before(from) && date.Before(to) {
			dates = append(dates, date)
		}
	}
	return dates
}

// EventsForRange returns occurrences between from and to, for the
// /today and /week views.
func (s *CalendarService) EventsForRange(ctx context.Context, from, to time.Time) ([]domain.Occurrence, error) {
	events, err := s.FetchEvents(ctx, from)
	if err != nil {
		return nil, err
	}

	var filtered []domain.Occurrence
	for _, occ := range s.Occurrences(events, from) {
		if occ.Date.Before(to) {
			filtered = append(filtered, occ)
		}
	}
	return filtered, nil
}

// CreateEvent adds an event to the configured calendar.
func (s *CalendarService) CreateEvent(ctx context.Context, title string, start time.Time, allDay bool) error {
	if !s.IsConfigured() {
		return fmt.Errorf("CalDAV not configured")
	}

	cal, err := s.targetCalendar(ctx)
	if err != nil {
		return err
	}

	end := start.Add(time.Hour)
	if allDay {
		end = start.AddDate(0, 0, 1)
	}

	event := &caldav.Event{
		Summary:   title,
		StartTime: start,
		EndTime:   end,
		AllDay:    allDay,
	}
	return s.client.CreateEvent(ctx, cal.Path, event)
}

// DeleteByKeyword removes events in the lookahead window whose title
// contains the keyword. Returns the deleted titles.
func (s *CalendarService) DeleteByKeyword(ctx context.Context, now time.Time, keyword string) ([]string, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	from := dateOnly(now, s.timezone)
	to := from.AddDate(0, lookaheadMonths, 0)

	raw, err := s.client.GetAllEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, ev := range raw {
		if !strings.Contains(ev.Summary, keyword) {
			continue
		}
		if err := s.client.DeleteEvent(ctx, ev.Path); err != nil {
			log.Printf("Delete failed for %q: %v", ev.Summary, err)
			continue
		}
		deleted = append(deleted, ev.Summary)
	}
	return deleted, nil
}

// targetCalendar picks the configured calendar by display name, or the
// first one when no name is configured.
func (s *CalendarService) targetCalendar(ctx context.Context) (caldav.Calendar, error) {
	calendars, err := s.client.DiscoverCalendars(ctx)
	if err != nil {
		return caldav.Calendar{}, err
	}
	if len(calendars) == 0 {
		return caldav.Calendar{}, fmt.Errorf("no calendars found")
	}

	if s.calendarName != "" {
		for _, cal := range calendars {
			if cal.DisplayName == s.calendarName {
				return cal, nil
			}
		}
		return caldav.Calendar{}, fmt.Errorf("calendar %q not found", s.calendarName)
	}
	return calendars[0], nil
}

// LunarToday returns the lunar date of the given solar day.
func (s *CalendarService) LunarToday(now time.Time) (lunar.Date, error) {
	return lunar.FromSolar(dateOnly(now, s.timezone))
}

func dateOnly(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
