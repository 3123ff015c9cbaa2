// This file holds the per-frequency scheduling strategies used to advance
// recurring rules. Each frequency maps to a Scheduler through a registry so
// new frequencies can be added without touching the processor.

package services

import (
	"fmt"
	"time"

	"carteira/internal/core"
)

// Scheduler computes the occurrence that follows prev. anchor is the rule's
// start date; month based schedules keep its day of month, clamped to the
// length of shorter months.
type Scheduler interface {
	Next(prev, anchor time.Time) time.Time
}

// DayStep advances by a fixed number of days.
type DayStep struct {
	Days int
}

func (s DayStep) Next(prev, _ time.Time) time.Time {
	return prev.AddDate(0, 0, s.Days)
}

// MonthStep advances by whole months on the anchor's day of month.
type MonthStep struct {
	Months int
}

func (s MonthStep) Next(prev, anchor time.Time) time.Time {
	first := time.Date(prev.Year(), prev.Month()+time.Month(s.Months), 1,
		prev.Hour(), prev.Minute(), prev.Second(), prev.Nanosecond(), prev.Location())
	day := anchor.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var schedulers = map[core.Frequency]Scheduler{
	core.Daily:      DayStep{Days: 1},
	core.Weekly:     DayStep{Days: 7},
	core.Biweekly:   DayStep{Days: 14},
	core.Monthly:    MonthStep{Months: 1},
	core.Bimonthly:  MonthStep{Months: 2},
	core.Quarterly:  MonthStep{Months: 3},
	core.Semiannual: MonthStep{Months: 6},
	core.Annual:     MonthStep{Months: 12},
}

// GetScheduler returns the strategy registered for a frequency.
func GetScheduler(f core.Frequency) (Scheduler, error) {
	s, ok := schedulers[f]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", f)
	}
	return s, nil
}

// RegisterScheduler adds or replaces the strategy for a frequency.
func RegisterScheduler(f core.Frequency, s Scheduler) {
	schedulers[f] = s
}
