package services

import (
	"testing"
	"time"

	"carteira/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSchedulers_Next(t *testing.T) {
	tests := []struct {
		name      string
		frequency core.Frequency
		prev      time.Time
		anchor    time.Time
		want      time.Time
	}{
		{"daily", core.Daily, date(2024, 1, 31), date(2024, 1, 1), date(2024, 2, 1)},
		{"weekly", core.Weekly, date(2024, 1, 29), date(2024, 1, 1), date(2024, 2, 5)},
		{"biweekly", core.Biweekly, date(2024, 12, 25), date(2024, 1, 1), date(2025, 1, 8)},
		{"monthly keeps anchor day", core.Monthly, date(2024, 3, 15), date(2024, 1, 15), date(2024, 4, 15)},
		{"monthly clamps to short month", core.Monthly, date(2024, 1, 31), date(2024, 1, 31), date(2024, 2, 29)},
		{"monthly recovers anchor after clamp", core.Monthly, date(2024, 2, 29), date(2024, 1, 31), date(2024, 3, 31)},
		{"monthly across year end", core.Monthly, date(2024, 12, 10), date(2024, 1, 10), date(2025, 1, 10)},
		{"bimonthly", core.Bimonthly, date(2024, 11, 5), date(2024, 1, 5), date(2025, 1, 5)},
		{"quarterly clamps", core.Quarterly, date(2024, 11, 30), date(2024, 5, 31), date(2025, 2, 28)},
		{"semiannual", core.Semiannual, date(2024, 3, 1), date(2024, 3, 1), date(2024, 9, 1)},
		{"annual leap day", core.Annual, date(2024, 2, 29), date(2024, 2, 29), date(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetScheduler(tt.frequency)
			if err != nil {
				t.Fatalf("GetScheduler(%s) error = %v", tt.frequency, err)
			}
			got := s.Next(tt.prev, tt.anchor)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%s) = %s, want %s", tt.prev.Format(core.DateLayout),
					got.Format(core.DateLayout), tt.want.Format(core.DateLayout))
			}
		})
	}
}

func TestGetScheduler_Unknown(t *testing.T) {
	if _, err := GetScheduler("fortnightly-ish"); err == nil {
		t.Error("GetScheduler should fail for unknown frequency")
	}
}

func TestRegisterScheduler(t *testing.T) {
	const custom core.Frequency = "every-ten-days"
	RegisterScheduler(custom, DayStep{Days: 10})
	t.Cleanup(func() { delete(schedulers, custom) })

	s, err := GetScheduler(custom)
	if err != nil {
		t.Fatalf("GetScheduler error = %v", err)
	}
	if got := s.Next(date(2024, 1, 1), date(2024, 1, 1)); !got.Equal(date(2024, 1, 11)) {
		t.Errorf("Next = %s", got)
	}
}
