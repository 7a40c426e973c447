package lunar

import (
	"errors"
	"testing"
	"time"
)

func solar(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFromSolar_KnownDates(t *testing.T) {
	tests := []struct {
		name  string
		solar time.Time
		want  Date
	}{
		{"table base", solar(1900, time.January, 31), Date{1900, 1, 1, false}},
		{"seollal 2025", solar(2025, time.January, 29), Date{2025, 1, 1, false}},
		{"dano 2025", solar(2025, time.May, 31), Date{2025, 5, 5, false}},
		{"chuseok 2025", solar(2025, time.October, 6), Date{2025, 8, 15, false}},
		{"first day of leap month 2025", solar(2025, time.July, 25), Date{2025, 6, 1, true}},
		{"first day of leap month 2017", solar(2017, time.June, 24), Date{2017, 5, 1, true}},
		{"day before leap month 2025", solar(2025, time.July, 24), Date{2025, 6, 30, false}},
	}

	for _, tt := range tests {
		got, err := FromSolar(tt.solar)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestSolar_KnownDates(t *testing.T) {
	tests := []struct {
		name  string
		lunar Date
		want  time.Time
	}{
		{"lunar new year 2025", Date{2025, 1, 1, false}, solar(2025, time.January, 29)},
		{"lunar 3/15 in 2025", Date{2025, 3, 15, false}, solar(2025, time.April, 12)},
		{"lunar 6/1 in 2025", Date{2025, 6, 1, false}, solar(2025, time.June, 25)},
		{"leap 6/1 in 2025", Date{2025, 6, 1, true}, solar(2025, time.July, 25)},
		{"chilseok 2025", Date{2025, 7, 7, false}, solar(2025, time.August, 29)},
		{"chilseok 2017", Date{2017, 7, 7, false}, solar(2017, time.August, 28)},
	}

	for _, tt := range tests {
		got, err := tt.lunar.Solar()
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: got %s, want %s", tt.name, got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
		}
	}
}

func TestLeapMonth_ReferenceYears(t *testing.T) {
	tests := []struct {
		year int
		leap int
	}{
		{1900, 8},
		{2017, 5},
		{2020, 4},
		{2023, 2},
		{2024, 0},
		{2025, 6},
	}

	for _, tt := range tests {
		if got := LeapMonth(tt.year); got != tt.leap {
			t.Errorf("LeapMonth(%d) = %d, want %d", tt.year, got, tt.leap)
		}
	}
}

func TestRoundTrip_FullRange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full-range round trip in short mode")
	}

	end := solar(2100, time.December, 31)
	for d := baseDate; !d.After(end); d = d.AddDate(0, 0, 1) {
		ld, err := FromSolar(d)
		if err != nil {
			t.Fatalf("FromSolar(%s): %v", d.Format("2006-01-02"), err)
		}
		back, err := ld.Solar()
		if err != nil {
			t.Fatalf("Solar(%+v): %v", ld, err)
		}
		if !back.Equal(d) {
			t.Fatalf("round trip %s -> %+v -> %s", d.Format("2006-01-02"), ld, back.Format("2006-01-02"))
		}
	}
}

func TestOutOfRange(t *testing.T) {
	for _, d := range []time.Time{
		solar(1899, time.December, 31),
		solar(1900, time.January, 30),
		solar(2150, time.January, 1),
	} {
		if _, err := FromSolar(d); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("FromSolar(%s): got %v, want ErrOutOfRange", d.Format("2006-01-02"), err)
		}
	}

	for _, ld := range []Date{
		{1899, 12, 1, false},
		{2101, 1, 1, false},
	} {
		if _, err := ld.Solar(); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Solar(%+v): got %v, want ErrOutOfRange", ld, err)
		}
	}
}

func TestNoSuchDay(t *testing.T) {
	tests := []struct {
		name  string
		lunar Date
	}{
		{"leap month mismatch", Date{2025, 5, 5, true}},
		{"leap month in a year without one", Date{2024, 1, 1, true}},
		{"day 30 in a 29-day month", Date{2025, 2, 30, false}},
		{"day 30 in the 29-day leap month", Date{2025, 6, 30, true}},
		{"month 13", Date{2025, 13, 1, false}},
	}

	for _, tt := range tests {
		if _, err := tt.lunar.Solar(); !errors.Is(err, ErrNoSuchDay) {
			t.Errorf("%s: got %v, want ErrNoSuchDay", tt.name, err)
		}
	}
}

func TestString(t *testing.T) {
	if got := (Date{2025, 3, 15, false}).String(); got != "음력 3월 15일" {
		t.Errorf("String() = %q", got)
	}
	if got := (Date{2025, 6, 1, true}).String(); got != "음력 윤6월 1일" {
		t.Errorf("String() = %q", got)
	}
}
