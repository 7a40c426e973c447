// Package lunar converts between Gregorian dates and the Korean lunar
// calendar using a precomputed per-year table. Leap months are inserted
// irregularly, so conversion is table lookup, not arithmetic.
package lunar

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MinYear and MaxYear bound the embedded conversion table.
	MinYear = 1900
	MaxYear = 2100
)

var (
	// ErrOutOfRange is returned for dates outside the table bounds.
	ErrOutOfRange = errors.New("lunar: date outside supported range")
	// ErrNoSuchDay is returned when a lunar date does not exist in the
	// requested year (wrong leap month, or day 30 in a 29-day month).
	ErrNoSuchDay = errors.New("lunar: date does not exist in that year")
)

// Date is a date in the lunar calendar. Leap marks a day inside the
// intercalary month that follows the regular month of the same number.
type Date struct {
	Year  int
	Month int
	Day   int
	Leap  bool
}

// Solar 1900-01-31 is lunar 1900-01-01.
var baseDate = time.Date(1900, time.January, 31, 0, 0, 0, 0, time.UTC)

// Each entry encodes one lunar year: bits 4..15 give the length of
// months 1..12 (set = 30 days, clear = 29), bits 0..3 give the leap
// month number (0 = none), bit 16 gives the leap month length.
// Month numbering follows the Korean (KASI) calendar; it departs from
// the Chinese one when a solar term crosses midnight KST, as in 2017
// where the leap month is the 5th rather than the 6th.
var yearTable = [MaxYear - MinYear + 1]uint32{
	0x04bd8, 0x04ae0, 0x0a570, 0x054d5, 0x0d260, 0x0d950, 0x16554, 0x056a0, 0x09ad0, 0x055d2, // 1900-1909
	0x04ae0, 0x0a5b6, 0x0a4d0, 0x0d250, 0x1d255, 0x0b540, 0x0d6a0, 0x0ada2, 0x095b0, 0x14977, // 1910-1919
	0x04970, 0x0a4b0, 0x0b4b5, 0x06a50, 0x06d40, 0x1ab54, 0x02b60, 0x09570, 0x052f2, 0x04970, // 1920-1929
	0x06566, 0x0d4a0, 0x0ea50, 0x16a95, 0x05ad0, 0x02b60, 0x186e3, 0x092e0, 0x1c8d7, 0x0c950, // 1930-1939
	0x0d4a0, 0x1d8a6, 0x0b550, 0x056a0, 0x1a5b4, 0x025d0, 0x092d0, 0x0d2b2, 0x0a950, 0x0b557, // 1940-1949
	0x06ca0, 0x0b550, 0x15355, 0x04da0, 0x0a5b0, 0x14573, 0x052b0, 0x0a9a8, 0x0e950, 0x06aa0, // 1950-1959
	0x0aea6, 0x0ab50, 0x04b60, 0x0aae4, 0x0a570, 0x05260, 0x0f263, 0x0d950, 0x05b57, 0x056a0, // 1960-1969
	0x096d0, 0x04dd5, 0x04ad0, 0x0a4d0, 0x0d4d4, 0x0d250, 0x0d558, 0x0b540, 0x0b5a0, 0x195a6, // 1970-1979
	0x095b0, 0x049b0, 0x0a974, 0x0a4b0, 0x0b27a, 0x06a50, 0x06d40, 0x0af46, 0x0ab60, 0x09570, // 1980-1989
	0x04af5, 0x04970, 0x064b0, 0x074a3, 0x0ea50, 0x06b58, 0x05ac0, 0x0ab60, 0x096d5, 0x092e0, // 1990-1999
	0x0c960, 0x0d954, 0x0d4a0, 0x0da50, 0x07552, 0x056a0, 0x0abb7, 0x025d0, 0x092d0, 0x0cab5, // 2000-2009
	0x0a950, 0x0b4a0, 0x0baa4, 0x0ad50, 0x055d9, 0x04ba0, 0x0a5b0, 0x05575, 0x052b0, 0x0a930, // 2010-2019
	0x07954, 0x06aa0, 0x0ad50, 0x05b52, 0x04b60, 0x0a6e6, 0x0a4e0, 0x0d260, 0x0ea65, 0x0d530, // 2020-2029
	0x05aa0, 0x076a3, 0x096d0, 0x04afb, 0x04ad0, 0x0a4d0, 0x1d0b6, 0x0d250, 0x0d520, 0x0dd45, // 2030-2039
	0x0b5a0, 0x056d0, 0x055b2, 0x049b0, 0x0a577, 0x0a4b0, 0x0aa50, 0x1b255, 0x06d20, 0x0ada0, // 2040-2049
	0x14b63, 0x09370, 0x049f8, 0x04970, 0x064b0, 0x168a6, 0x0ea50, 0x06b20, 0x1a6c4, 0x0aae0, // 2050-2059
	0x0a2e0, 0x0d2e3, 0x0c960, 0x0d557, 0x0d4a0, 0x0da50, 0x05d55, 0x056a0, 0x0a6d0, 0x055d4, // 2060-2069
	0x052d0, 0x0a9b8, 0x0a950, 0x0b4a0, 0x0b6a6, 0x0ad50, 0x055a0, 0x0aba4, 0x0a5b0, 0x052b0, // 2070-2079
	0x0b273, 0x06930, 0x07337, 0x06aa0, 0x0ad50, 0x14b55, 0x04b60, 0x0a570, 0x054e4, 0x0d160, // 2080-2089
	0x0e968, 0x0d520, 0x0daa0, 0x16aa6, 0x056d0, 0x04ae0, 0x0a9d4, 0x0a2d0, 0x0d150, 0x0f252, // 2090-2099
	0x0d520, // 2100
}

// LeapMonth returns the leap month number of a lunar year, 0 if none.
func LeapMonth(year int) int {
	return int(yearTable[year-MinYear] & 0xf)
}

func leapDays(year int) int {
	if LeapMonth(year) == 0 {
		return 0
	}
	if yearTable[year-MinYear]&0x10000 != 0 {
		return 30
	}
	return 29
}

func monthDays(year, month int) int {
	if yearTable[year-MinYear]&(0x10000>>uint(month)) != 0 {
		return 30
	}
	return 29
}

func yearDays(year int) int {
	days := 12 * 29
	for bit := uint32(0x8000); bit >= 0x10; bit >>= 1 {
		if yearTable[year-MinYear]&bit != 0 {
			days++
		}
	}
	return days + leapDays(year)
}

// FromSolar converts a Gregorian date to its lunar equivalent.
// Only the date part of t is used.
func FromSolar(t time.Time) (Date, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(day.Sub(baseDate).Hours() / 24)
	if offset < 0 {
		return Date{}, ErrOutOfRange
	}

	year := MinYear
	for {
		if year > MaxYear {
			return Date{}, ErrOutOfRange
		}
		yd := yearDays(year)
		if offset < yd {
			break
		}
		offset -= yd
		year++
	}

	leap := LeapMonth(year)
	month := 1
	isLeap := false
	for {
		var md int
		if isLeap {
			md = leapDays(year)
		} else {
			md = monthDays(year, month)
		}
		if offset < md {
			break
		}
		offset -= md
		// The leap month follows the regular month of the same number.
		if !isLeap && month == leap {
			isLeap = true
		} else {
			isLeap = false
			month++
		}
	}

	return Date{Year: year, Month: month, Day: offset + 1, Leap: isLeap}, nil
}

// Solar converts a lunar date back to the Gregorian calendar, returned
// at midnight UTC. Returns ErrNoSuchDay if the year has no such date.
func (d Date) Solar() (time.Time, error) {
	if d.Year < MinYear || d.Year > MaxYear {
		return time.Time{}, ErrOutOfRange
	}
	if d.Month < 1 || d.Month > 12 {
		return time.Time{}, ErrNoSuchDay
	}

	leap := LeapMonth(d.Year)
	if d.Leap && leap != d.Month {
		return time.Time{}, ErrNoSuchDay
	}

	var md int
	if d.Leap {
		md = leapDays(d.Year)
	} else {
		md = monthDays(d.Year, d.Month)
	}
	if d.Day < 1 || d.Day > md {
		return time.Time{}, ErrNoSuchDay
	}

	offset := 0
	for y := MinYear; y < d.Year; y++ {
		offset += yearDays(y)
	}
	for m := 1; m < d.Month; m++ {
		offset += monthDays(d.Year, m)
		if m == leap {
			offset += leapDays(d.Year)
		}
	}
	if d.Leap {
		offset += monthDays(d.Year, d.Month)
	}
	offset += d.Day - 1

	return baseDate.AddDate(0, 0, offset), nil
}

// String formats the date in the style used by event summaries,
// e.g. "음력 3월 15일" or "음력 윤6월 1일".
func (d Date) String() string {
	leapMark := ""
	if d.Leap {
		leapMark = "윤"
	}
	return fmt.Sprintf("음력 %s%d월 %d일", leapMark, d.Month, d.Day)
}

// IsoFormat renders the date as YYYY-MM-DD with a leap marker suffix.
func (d Date) IsoFormat() string {
	s := fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	if d.Leap {
		s += " (윤달)"
	}
	return s
}
