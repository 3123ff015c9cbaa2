package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// DateRange bounds a ledger query. A zero Start or End leaves that side open.
// End is inclusive unless EndExclusive is set.
type DateRange struct {
	Start        time.Time
	End          time.Time
	EndExclusive bool
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if r.End.IsZero() {
		return true
	}
	if r.EndExclusive {
		return t.Before(r.End)
	}
	return !t.After(r.End)
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func endOfDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func firstOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// ResolvePeriod converts a budget period into an inclusive date range.
//
// Monthly periods need a month in 1..12. Quarterly periods use the month as a
// quarter selector (quarter = ceil(month/3), month defaults to 1). Annual
// periods ignore the month.
func ResolvePeriod(period Period, year int, month *int) (DateRange, error) {
	switch period {
	case PeriodMonthly:
		if month == nil {
			return DateRange{}, fmt.Errorf("%w: monthly period requires a month", ErrInvalidPeriod)
		}
		if *month < 1 || *month > 12 {
			return DateRange{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, *month)
		}
		start := firstOfMonth(year, time.Month(*month))
		return DateRange{Start: start, End: endOfDay(start.AddDate(0, 1, -1))}, nil

	case PeriodQuarterly:
		m := 1
		if month != nil {
			m = *month
		}
		if m < 1 || m > 12 {
			return DateRange{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, m)
		}
		quarter := (m + 2) / 3
		start := firstOfMonth(year, time.Month((quarter-1)*3+1))
		return DateRange{Start: start, End: endOfDay(start.AddDate(0, 3, -1))}, nil

	case PeriodAnnual:
		start := firstOfMonth(year, time.January)
		return DateRange{Start: start, End: endOfDay(time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC))}, nil

	default:
		return DateRange{}, fmt.Errorf("%w: unknown period %q", ErrInvalidPeriod, period)
	}
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth validates the month number.
func NewYearMonth(year, month int) (YearMonth, error) {
	if month < 1 || month > 12 {
		return YearMonth{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	return YearMonth{Year: year, Month: time.Month(month)}, nil
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return YearMonth{}, invalid("month", "expected YYYY-MM")
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return YearMonth{}, invalid("month", "expected YYYY-MM")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return YearMonth{}, invalid("month", "month must be between 01 and 12")
	}
	return YearMonth{Year: y, Month: time.Month(m)}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Range is the half-open calendar month [first, firstOfNext).
func (ym YearMonth) Range() DateRange {
	start := firstOfMonth(ym.Year, ym.Month)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0), EndExclusive: true}
}

// BillingRange is the card statement window
// [billingDay of this month, billingDay of next month). Days past the end of a
// short month roll over into the following month.
func (ym YearMonth) BillingRange(billingDay int) DateRange {
	start := time.Date(ym.Year, ym.Month, billingDay, 0, 0, 0, 0, time.UTC)
	end := time.Date(ym.Year, ym.Month+1, billingDay, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: end, EndExclusive: true}
}

// Day returns the given day of the month with calendar normalisation.
func (ym YearMonth) Day(day int) time.Time {
	return time.Date(ym.Year, ym.Month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" date (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("date", "expected YYYY-MM-DD")
	}
	return t, nil
}

// ParseDateTime accepts "YYYY-MM-DD" or RFC 3339 timestamps.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return ParseDate(s)
}

// EndOfDay extends a date to its last nanosecond.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return endOfDay(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
