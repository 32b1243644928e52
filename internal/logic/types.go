// Package logic contains the pure decision rules for the peak switch.
// This package has NO external dependencies (no GPIO, MQTT, HTTP, storage or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Code is the daily tariff classification published by the remote source.
type Code int

const (
	CodeUnknown Code = iota
	CodeTier1        // lowest cost
	CodeTier2
	CodeTier3 // highest cost
)

// CodeOf maps a raw integer onto the code space; anything outside 0..3 is Unknown.
func CodeOf(n int) Code {
	if n < int(CodeUnknown) || n > int(CodeTier3) {
		return CodeUnknown
	}
	return Code(n)
}

// Known reports whether the code is a usable answer.
func (c Code) Known() bool {
	return c >= CodeTier1 && c <= CodeTier3
}

func (c Code) String() string {
	switch c {
	case CodeTier1:
		return "TIER1"
	case CodeTier2:
		return "TIER2"
	case CodeTier3:
		return "TIER3"
	default:
		return "UNKNOWN"
	}
}

// Period is the daily sub-window derived from the configured peak hours.
type Period int

const (
	PeriodPeak    Period = 1
	PeriodOffPeak Period = 2
)

func (p Period) String() string {
	if p == PeriodPeak {
		return "PEAK"
	}
	return "OFF_PEAK"
}

// Date is a local calendar date in YYYY-MM-DD form.
type Date string

const dateLayout = "2006-01-02"

// DateOf returns the local calendar date of t. No timezone conversion is done.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate validates s as a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format(dateLayout))
}

// Entry is a single date → classification mapping.
type Entry struct {
	Date Date
	Code Code
}

// Policy selects what happens to the actuator when no classification can be obtained.
type Policy string

const (
	PolicyKeepPrevious Policy = "keep_previous"
	PolicyForceOn      Policy = "force_on"
	PolicyForceOff     Policy = "force_off"
)

// ParsePolicy accepts the config spellings of a fallback policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyKeepPrevious, PolicyForceOn, PolicyForceOff:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown fallback policy %q", s)
}

// State represents the logical state of the switch.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts an actuator boolean to a State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// EventType represents an actuator command event.
type EventType string

const (
	EventSwitchOn  EventType = "SWITCH_ON"
	EventSwitchOff EventType = "SWITCH_OFF"
)

// Reason explains why the actuator was commanded.
type Reason string

const (
	ReasonSchedule Reason = "schedule"
	ReasonFallback Reason = "fallback"
)

// Event represents an actuator command to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Code      Code
	Period    Period
	Reason    Reason
}

// NewEvent builds the event for commanding the switch to on.
func NewEvent(t time.Time, on bool, code Code, period Period, reason Reason) Event {
	typ := EventSwitchOff
	if on {
		typ = EventSwitchOn
	}
	return Event{
		Timestamp: t,
		Type:      typ,
		State:     StateOf(on),
		Code:      code,
		Period:    period,
		Reason:    reason,
	}
}
