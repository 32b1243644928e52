package logic

import (
	"sort"
	"time"
)

const (
	minutesPerDay = 24 * 60

	// BoundaryBuffer is added to every boundary wake so the boundary has passed
	// before the next evaluation.
	BoundaryBuffer = 2 * time.Minute

	// MaxWake caps a single armed timer.
	MaxWake = 24 * time.Hour

	// RefreshTolerance is the half-width of the window around the daily refresh hour.
	RefreshTolerance = 30
)

// Window holds the daily boundaries that drive re-evaluation.
type Window struct {
	PeakStartHour    int
	PeakEndHour      int
	DailyRefreshHour int
}

// Empty reports whether the peak window can never match.
func (w Window) Empty() bool {
	return w.PeakStartHour == w.PeakEndHour
}

// MinuteOfDay returns the wall-clock minutes since local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// CurrentPeriod returns Peak iff hour ∈ [start, end) modulo 24.
// An empty window (start == end) is never Peak.
func CurrentPeriod(hour, start, end int) Period {
	switch {
	case start == end:
		return PeriodOffPeak
	case start < end:
		if hour >= start && hour < end {
			return PeriodPeak
		}
	default:
		if hour >= start || hour < end {
			return PeriodPeak
		}
	}
	return PeriodOffPeak
}

// PeriodAt is CurrentPeriod for the hour of t.
func (w Window) PeriodAt(t time.Time) Period {
	return CurrentPeriod(t.Hour(), w.PeakStartHour, w.PeakEndHour)
}

// TargetOn is the business rule: ON only during peak on a highest-cost day.
func TargetOn(period Period, code Code) bool {
	return period == PeriodPeak && code == CodeTier3
}

// MinutesUntilNextBoundary returns the minutes from minute (since midnight)
// to the first boundary hour strictly after it, wrapping to tomorrow's first
// boundary when none remain today.
func MinutesUntilNextBoundary(minute int, hours ...int) int {
	if len(hours) == 0 {
		return minutesPerDay
	}
	marks := make([]int, 0, len(hours))
	for _, h := range hours {
		marks = append(marks, ((h%24+24)%24)*60)
	}
	sort.Ints(marks)

	for _, m := range marks {
		if m > minute {
			return m - minute
		}
	}
	return minutesPerDay - minute + marks[0]
}

// NextCheckDelay returns how long to wait before the next natural evaluation:
// minutes until the next boundary plus BoundaryBuffer, capped at MaxWake.
func (w Window) NextCheckDelay(t time.Time) time.Duration {
	minutes := MinutesUntilNextBoundary(MinuteOfDay(t), w.PeakStartHour, w.DailyRefreshHour, w.PeakEndHour)
	d := time.Duration(minutes)*time.Minute + BoundaryBuffer
	if d > MaxWake {
		d = MaxWake
	}
	return d
}

// InRefreshWindow reports whether t lies within ±RefreshTolerance minutes of
// the daily refresh hour, wrapping across midnight.
func (w Window) InRefreshWindow(t time.Time) bool {
	diff := MinuteOfDay(t) - w.DailyRefreshHour*60
	if diff < 0 {
		diff = -diff
	}
	if diff > minutesPerDay/2 {
		diff = minutesPerDay - diff
	}
	return diff <= RefreshTolerance
}
