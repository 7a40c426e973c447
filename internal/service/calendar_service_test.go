package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dhkang/dalbot/internal/clients/caldav"
	"github.com/dhkang/dalbot/internal/domain"
	"github.com/dhkang/dalbot/internal/lunar"
)

func newTestCalendarService(yearMin, yearMax int) *CalendarService {
	return NewCalendarService(nil, time.UTC, yearMin, yearMax, "")
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseLunarMarker(t *testing.T) {
	tests := []struct {
		summary string
		month   int
		day     int
		leap    bool
		ok      bool
	}{
		{"어머니 생신 (음력 3월 15일)", 3, 15, false, true},
		{"아버지 제사 (음력 윤6월 1일)", 6, 1, true, true},
		{"석가탄신일 (음 4/8)", 4, 8, false, true},
		{"회의", 0, 0, false, false},
		{"설정 오류 (음력 13월 40일)", 0, 0, false, false},
		{"결혼기념일 (양력)", 0, 0, false, false},
	}

	for _, tt := range tests {
		month, day, leap, ok := ParseLunarMarker(tt.summary)
		if ok != tt.ok || month != tt.month || day != tt.day || leap != tt.leap {
			t.Errorf("ParseLunarMarker(%q) = (%d, %d, %v, %v), want (%d, %d, %v, %v)",
				tt.summary, month, day, leap, ok, tt.month, tt.day, tt.leap, tt.ok)
		}
	}
}

func TestClassify(t *testing.T) {
	lunarEvent := Classify(caldav.Event{
		UID:       "uid-1",
		Summary:   "어머니 생신 (음력 3월 15일)",
		StartTime: day(1990, time.April, 10),
		RRule:     "FREQ=YEARLY",
	}, time.UTC)
	if !lunarEvent.IsLunar() {
		t.Fatal("yearly event with a lunar marker must classify as lunar")
	}
	if lunarEvent.Rule.Month != 3 || lunarEvent.Rule.Day != 15 || lunarEvent.Rule.Leap {
		t.Errorf("unexpected rule: %+v", lunarEvent.Rule)
	}

	// The marker without a yearly RRULE stays solar: a one-off event
	// mentioning a lunar date is not a recurring anniversary.
	oneOff := Classify(caldav.Event{
		UID:       "uid-2",
		Summary:   "저녁 약속 (음력 3월 15일)",
		StartTime: day(2025, time.April, 12),
	}, time.UTC)
	if oneOff.IsLunar() {
		t.Error("event without FREQ=YEARLY must stay solar")
	}

	solar := Classify(caldav.Event{
		UID:       "uid-3",
		Summary:   "결혼기념일",
		StartTime: day(2015, time.May, 5),
		RRule:     "FREQ=YEARLY",
	}, time.UTC)
	if solar.IsLunar() || !solar.Yearly {
		t.Errorf("unexpected classification: %+v", solar)
	}
}

func TestNextLunarOccurrence(t *testing.T) {
	s := newTestCalendarService(lunar.MinYear, lunar.MaxYear)
	rule := domain.DateRule{Kind: domain.DateLunar, Month: 3, Day: 15}

	// Lunar 3/15 in 2025 is solar 2025-04-12.
	occ, err := s.NextLunarOccurrence(rule, day(2025, time.January, 1))
	if err != nil {
		t.Fatalf("NextLunarOccurrence: %v", err)
	}
	if !occ.Equal(day(2025, time.April, 12)) {
		t.Errorf("got %s, want 2025-04-12", occ.Format("2006-01-02"))
	}

	// The occurrence day itself still counts as upcoming.
	occ, err = s.NextLunarOccurrence(rule, day(2025, time.April, 12))
	if err != nil {
		t.Fatalf("NextLunarOccurrence on the day: %v", err)
	}
	if !occ.Equal(day(2025, time.April, 12)) {
		t.Errorf("got %s, want 2025-04-12", occ.Format("2006-01-02"))
	}

	// Once this year's date passed, the next year's is used
	// (lunar 3/15 in 2026 is solar 2026-05-01).
	occ, err = s.NextLunarOccurrence(rule, day(2025, time.April, 13))
	if err != nil {
		t.Fatalf("NextLunarOccurrence after pass: %v", err)
	}
	if !occ.Equal(day(2026, time.May, 1)) {
		t.Errorf("got %s, want 2026-05-01", occ.Format("2006-01-02"))
	}
}

func TestNextLunarOccurrence_YearBoundary(t *testing.T) {
	s := newTestCalendarService(lunar.MinYear, lunar.MaxYear)
	// Late lunar months spill into January of the next solar year:
	// lunar 11/15 of 2025 is solar 2026-01-03.
	rule := domain.DateRule{Kind: domain.DateLunar, Month: 11, Day: 15}

	occ, err := s.NextLunarOccurrence(rule, day(2026, time.January, 1))
	if err != nil {
		t.Fatalf("NextLunarOccurrence: %v", err)
	}
	if !occ.Equal(day(2026, time.January, 3)) {
		t.Errorf("got %s, want 2026-01-03", occ.Format("2006-01-02"))
	}

	// Past the spilled occurrence, the next one is lunar 11/15 of 2026,
	// solar 2026-12-23.
	occ, err = s.NextLunarOccurrence(rule, day(2026, time.January, 4))
	if err != nil {
		t.Fatalf("NextLunarOccurrence after pass: %v", err)
	}
	if !occ.Equal(day(2026, time.December, 23)) {
		t.Errorf("got %s, want 2026-12-23", occ.Format("2006-01-02"))
	}
}

func TestNextLunarOccurrence_LeapAnchor(t *testing.T) {
	s := newTestCalendarService(lunar.MinYear, lunar.MaxYear)
	rule := domain.DateRule{Kind: domain.DateLunar, Month: 6, Day: 1, Leap: true}

	// 2025 has a leap 6th month; leap 6/1 is solar 2025-07-25.
	occ, err := s.NextLunarOccurrence(rule, day(2025, time.January, 1))
	if err != nil {
		t.Fatalf("NextLunarOccurrence: %v", err)
	}
	if !occ.Equal(day(2025, time.July, 25)) {
		t.Errorf("got %s, want 2025-07-25", occ.Format("2006-01-02"))
	}

	// 2026 and 2027 have no leap 6th month: the occurrence is skipped,
	// not shifted to an adjacent day.
	if _, err := s.NextLunarOccurrence(rule, day(2026, time.January, 1)); !errors.Is(err, lunar.ErrNoSuchDay) {
		t.Errorf("leap-only anchor in a year without the leap month: got %v, want ErrNoSuchDay", err)
	}
}

func TestNextLunarOccurrence_ShortMonthAnchor(t *testing.T) {
	s := newTestCalendarService(lunar.MinYear, lunar.MaxYear)
	// Lunar 2/30 exists in 2024 but not in 2025 or 2026.
	rule := domain.DateRule{Kind: domain.DateLunar, Month: 2, Day: 30}

	occ, err := s.NextLunarOccurrence(rule, day(2024, time.January, 1))
	if err != nil {
		t.Fatalf("NextLunarOccurrence: %v", err)
	}
	if !occ.Equal(day(2024, time.April, 8)) {
		t.Errorf("got %s, want 2024-04-08", occ.Format("2006-01-02"))
	}

	if _, err := s.NextLunarOccurrence(rule, day(2024, time.June, 1)); !errors.Is(err, lunar.ErrNoSuchDay) {
		t.Errorf("day 30 anchor in years with a 29-day month: got %v, want ErrNoSuchDay", err)
	}
}

func TestNextLunarOccurrence_ConfiguredRange(t *testing.T) {
	s := newTestCalendarService(2000, 2024)
	rule := domain.DateRule{Kind: domain.DateLunar, Month: 3, Day: 15}

	if _, err := s.NextLunarOccurrence(rule, day(2025, time.January, 1)); !errors.Is(err, lunar.ErrOutOfRange) {
		t.Errorf("outside configured range: got %v, want ErrOutOfRange", err)
	}
}

func TestOccurrences(t *testing.T) {
	s := newTestCalendarService(lunar.MinYear, lunar.MaxYear)
	now := day(2025, time.March, 20)

	events := []domain.Event{
		{
			UID:    "lunar-1",
			Title:  "어머니 생신 (음력 3월 15일)",
			Yearly: true,
			Rule:   domain.DateRule{Kind: domain.DateLunar, Month: 3, Day: 15},
		},
		{
			UID:    "solar-1",
			Title:  "결혼기념일",
			Start:  day(2015, time.April, 1),
			RRule:  "FREQ=YEARLY",
			Yearly: true,
		},
		{
			UID:   "single-1",
			Title: "병원 예약",
			Start: day(2025, time.March, 25),
		},
		{
			UID:   "past-1",
			Title: "지난 일정",
			Start: day(2025, time.March, 1),
		},
		{
			UID:    "skip-1",
			Title:  "윤달 제사 (음력 윤6월 1일)",
			Yearly: true,
			Rule:   domain.DateRule{Kind: domain.DateLunar, Month: 6, Day: 1, Leap: true},
		},
	}

	occs := s.Occurrences(events, now)

	got := map[string]string{}
	for _, occ := range occs {
		got[occ.Event.UID] = occ.Date.Format("2006-01-02")
	}

	want := map[string]string{
		"single-1": "2025-03-25",
		"solar-1":  "2025-04-01",
		"lunar-1":  "2025-04-12",
	}
	if len(got) != len(want) {
		t.Fatalf("got occurrences %v, want %v", got, want)
	}
	for uid, date := range want {
		if got[uid] != date {
			t.Errorf("occurrence for %s = %s, want %s", uid, got[uid], date)
		}
	}

	// Sorted by date.
	for i := 1; i < len(occs); i++ {
		if occs[i].Date.Before(occs[i-1].Date) {
			t.Error("occurrences must be ordered by date")
		}
	}

	// The leap anchor (windows into July, outside the 2-month window
	// anyway) and the passed one-off must be absent.
	if _, ok := got["skip-1"]; ok {
		t.Error("leap-month occurrence outside the window must be skipped")
	}
	if _, ok := got["past-1"]; ok {
		t.Error("passed one-off event must be skipped")
	}
}

func TestOccurrences_RecurrenceRules(t *testing.T) {
	s := newTestCalendarService(lunar.MinYear, lunar.MaxYear)

	events := []domain.Event{
		{
			UID:    "biennial",
			Title:  "격년 건강검진",
			Start:  day(2024, time.April, 1),
			RRule:  "FREQ=YEARLY;INTERVAL=2",
			Yearly: true,
		},
		{
			UID:    "ended",
			Title:  "끝난 모임",
			Start:  day(2015, time.April, 1),
			RRule:  "FREQ=YEARLY;UNTIL=20240601T000000Z",
			Yearly: true,
		},
		{
			UID:   "weekly",
			Title: "주간 회의",
			Start: day(2025, time.March, 18),
			RRule: "FREQ=WEEKLY",
		},
	}

	byUID := func(occs []domain.Occurrence) map[string][]string {
		m := map[string][]string{}
		for _, occ := range occs {
			m[occ.Event.UID] = append(m[occ.Event.UID], occ.Date.Format("2006-01-02"))
		}
		return m
	}

	got := byUID(s.Occurrences(events, day(2025, time.March, 20)))

	// INTERVAL=2 from 2024 skips 2025 entirely.
	if dates, ok := got["biennial"]; ok {
		t.Errorf("biennial rule must not fire in an off year, got %v", dates)
	}
	// An expired UNTIL produces nothing.
	if dates, ok := got["ended"]; ok {
		t.Errorf("ended rule must not fire, got %v", dates)
	}
	// A weekly rule keeps producing dates after its DTSTART passed.
	weekly := got["weekly"]
	if len(weekly) == 0 || weekly[0] != "2025-03-25" {
		t.Errorf("weekly dates = %v, want first 2025-03-25", weekly)
	}

	// The off-year rule fires again the year after.
	got = byUID(s.Occurrences(events, day(2026, time.March, 20)))
	if dates := got["biennial"]; len(dates) != 1 || dates[0] != "2026-04-01" {
		t.Errorf("biennial dates in 2026 = %v, want [2026-04-01]", dates)
	}
}
