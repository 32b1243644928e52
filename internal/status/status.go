// Package status provides a thread-safe status tracker for the peak-switch daemon.
// The engine writes to it; HTTP handlers and MQTT lifecycle events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/peak-switch/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	SwitchID             int
	PeakStartHour        int
	PeakEndHour          int
	DailyRefreshHour     int
	RetryDelaySeconds    int
	FallbackPolicy       string
	SourceURL            string
	NotificationsEnabled bool
	Broker               string
	HTTPAddr             string
}

// Counts tracks activity since startup.
type Counts struct {
	Fetches        int
	FetchFailures  int
	SwitchCommands int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Switch        logic.State // empty until the first command
	Code          logic.Code
	Period        logic.Period
	LastFetch     time.Time
	NextWake      time.Time
	NextWakeKind  string
	LastError     string
	LastErrorAt   time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetSwitch records a commanded switch state.
func (t *Tracker) SetSwitch(state logic.State) {
	t.mu.Lock()
	t.snap.Switch = state
	t.snap.Counts.SwitchCommands++
	t.mu.Unlock()
}

// SetClassification records the code and period in effect.
func (t *Tracker) SetClassification(code logic.Code, period logic.Period) {
	t.mu.Lock()
	t.snap.Code = code
	t.snap.Period = period
	t.mu.Unlock()
}

// FetchSucceeded records a successful lookup.
func (t *Tracker) FetchSucceeded(at time.Time) {
	t.mu.Lock()
	t.snap.LastFetch = at
	t.snap.Counts.Fetches++
	t.mu.Unlock()
}

// FetchFailed records a failed lookup.
func (t *Tracker) FetchFailed(at time.Time, reason string) {
	t.mu.Lock()
	t.snap.Counts.Fetches++
	t.snap.Counts.FetchFailures++
	t.snap.LastError = reason
	t.snap.LastErrorAt = at
	t.mu.Unlock()
}

// SetLastFetch seeds the last fetch time, e.g. from the store at startup.
func (t *Tracker) SetLastFetch(at time.Time) {
	t.mu.Lock()
	t.snap.LastFetch = at
	t.mu.Unlock()
}

// SetNextWake records the armed timer.
func (t *Tracker) SetNextWake(at time.Time, kind string) {
	t.mu.Lock()
	t.snap.NextWake = at
	t.snap.NextWakeKind = kind
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
