package core

import (
	"testing"
	"time"
)

func TestOccurrenceDate(t *testing.T) {
	tests := []struct {
		name   string
		day    int
		anchor time.Time
		want   time.Time
	}{
		{
			name:   "plain day mid-month",
			day:    10,
			anchor: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "day 31 in february leap year clamps to 29",
			day:    31,
			anchor: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "day 31 in february non-leap year clamps to 28",
			day:    31,
			anchor: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "day 31 in a 30-day month clamps to 30",
			day:    31,
			anchor: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "day below one clamps to first",
			day:    0,
			anchor: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "anchor time of day is discarded",
			day:    15,
			anchor: time.Date(2024, 6, 20, 13, 45, 2, 0, time.UTC),
			want:   time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OccurrenceDate(tt.day, tt.anchor)
			if !got.Equal(tt.want) {
				t.Errorf("OccurrenceDate(%d, %v) = %v, want %v", tt.day, tt.anchor, got, tt.want)
			}
		})
	}
}

// Every day 1..31 against every month of a leap and a non-leap year must land
// inside the anchor's month.
func TestOccurrenceDateStaysInMonth(t *testing.T) {
	for _, year := range []int{2024, 2025} {
		for month := time.January; month <= time.December; month++ {
			anchor := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
			last := LastDayOfMonth(anchor)
			for day := 1; day <= 31; day++ {
				got := OccurrenceDate(day, anchor)
				if got.Year() != year || got.Month() != month {
					t.Fatalf("OccurrenceDate(%d, %v) left the month: %v", day, anchor, got)
				}
				if got.Day() < 1 || got.Day() > last {
					t.Fatalf("OccurrenceDate(%d, %v) = day %d, outside [1, %d]", day, anchor, got.Day(), last)
				}
			}
		}
	}
}

func TestLastDayOfMonth(t *testing.T) {
	tests := []struct {
		anchor time.Time
		want   int
	}{
		{time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), 29},
		{time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), 28},
		{time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 30},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 31},
	}
	for _, tt := range tests {
		if got := LastDayOfMonth(tt.anchor); got != tt.want {
			t.Errorf("LastDayOfMonth(%v) = %d, want %d", tt.anchor, got, tt.want)
		}
	}
}

func TestMonthBounds(t *testing.T) {
	ref := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	start, end := MonthBounds(ref)

	if !start.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want 2024-06-01T00:00:00Z", start)
	}
	if end.Month() != time.June || end.Day() != 30 {
		t.Errorf("end = %v, want last instant of June", end)
	}
	if !end.Before(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end %v must fall before the next month", end)
	}
}

func TestSameMonth(t *testing.T) {
	a := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	c := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	if !SameMonth(a, b) {
		t.Error("expected same month for two March 2024 dates")
	}
	if SameMonth(a, c) {
		t.Error("February and March must differ")
	}
	if SameMonth(a, d) {
		t.Error("same month in different years must differ")
	}
}
