package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/peak-switch/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{SwitchID: 3, PeakStartHour: 6, PeakEndHour: 22, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.SwitchID != 3 {
		t.Errorf("Config.SwitchID: got %d, want 3", snap.Config.SwitchID)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Switch != "" {
		t.Errorf("expected empty switch state initially, got %q", snap.Switch)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestSetSwitchCountsCommands(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetSwitch(logic.StateOn)
	tr.SetSwitch(logic.StateOff)

	snap := tr.Snapshot()
	if snap.Switch != logic.StateOff {
		t.Errorf("Switch: got %q, want OFF", snap.Switch)
	}
	if snap.Counts.SwitchCommands != 2 {
		t.Errorf("SwitchCommands: got %d, want 2", snap.Counts.SwitchCommands)
	}
}

func TestSetClassification(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetClassification(logic.CodeTier3, logic.PeriodPeak)

	snap := tr.Snapshot()
	if snap.Code != logic.CodeTier3 || snap.Period != logic.PeriodPeak {
		t.Errorf("got code=%v period=%v, want TIER3/PEAK", snap.Code, snap.Period)
	}
}

func TestFetchOutcomes(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	t1 := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	tr.FetchFailed(t1, "status 503")
	tr.FetchSucceeded(t2)

	snap := tr.Snapshot()
	if snap.Counts.Fetches != 2 {
		t.Errorf("Fetches: got %d, want 2", snap.Counts.Fetches)
	}
	if snap.Counts.FetchFailures != 1 {
		t.Errorf("FetchFailures: got %d, want 1", snap.Counts.FetchFailures)
	}
	if !snap.LastFetch.Equal(t2) {
		t.Errorf("LastFetch: got %v, want %v", snap.LastFetch, t2)
	}
	if snap.LastError != "status 503" || !snap.LastErrorAt.Equal(t1) {
		t.Errorf("LastError: got %q at %v", snap.LastError, snap.LastErrorAt)
	}
}

func TestSetLastFetchDoesNotCount(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	tr.SetLastFetch(at)

	snap := tr.Snapshot()
	if !snap.LastFetch.Equal(at) {
		t.Errorf("LastFetch: got %v, want %v", snap.LastFetch, at)
	}
	if snap.Counts.Fetches != 0 {
		t.Errorf("Fetches: got %d, want 0", snap.Counts.Fetches)
	}
}

func TestSetNextWake(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 3, 1, 22, 2, 0, 0, time.UTC)
	tr.SetNextWake(at, "evaluate")

	snap := tr.Snapshot()
	if !snap.NextWake.Equal(at) || snap.NextWakeKind != "evaluate" {
		t.Errorf("NextWake: got %v %q", snap.NextWake, snap.NextWakeKind)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-10 * time.Second)
	tr := NewTracker(start, Config{})

	snap := tr.Snapshot()
	uptime := snap.Uptime()
	if uptime < 9*time.Second || uptime > 12*time.Second {
		t.Errorf("Uptime: got %v, expected ~10s", uptime)
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now %v not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetSwitch(logic.StateOn)

	snap1 := tr.Snapshot()
	tr.SetSwitch(logic.StateOff)
	snap2 := tr.Snapshot()

	if snap1.Switch != logic.StateOn {
		t.Error("snap1 should still be ON")
	}
	if snap2.Switch != logic.StateOff {
		t.Error("snap2 should be OFF")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Switch:        logic.StateOn,
		Code:          logic.CodeTier2,
		Period:        logic.PeriodPeak,
		LastFetch:     time.Date(2026, 1, 1, 11, 0, 5, 0, time.UTC),
		NextWake:      time.Date(2026, 1, 1, 22, 2, 0, 0, time.UTC),
		NextWakeKind:  "evaluate",
		Counts:        Counts{Fetches: 2, FetchFailures: 1, SwitchCommands: 4},
		StartTime:     start,
		Now:           start.Add(90 * time.Second),
		MQTTConnected: true,
		Config: Config{
			SwitchID:       7,
			PeakStartHour:  6,
			PeakEndHour:    22,
			FallbackPolicy: "force_on",
			Broker:         "tcp://broker:1883",
			HTTPAddr:       ":8080",
		},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Switch != "ON" {
		t.Errorf("Switch: got %q, want ON", s.Switch)
	}
	if s.Code != 2 || s.Tier != "TIER2" {
		t.Errorf("Code/Tier: got %d/%q, want 2/TIER2", s.Code, s.Tier)
	}
	if s.Period != "PEAK" {
		t.Errorf("Period: got %q, want PEAK", s.Period)
	}
	if s.LastFetch != "2026-01-01T11:00:05Z" {
		t.Errorf("LastFetch: got %q", s.LastFetch)
	}
	if s.NextWake != "2026-01-01T22:02:00Z" || s.NextWakeKind != "evaluate" {
		t.Errorf("NextWake: got %q %q", s.NextWake, s.NextWakeKind)
	}
	if s.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds: got %d, want 90", s.UptimeSeconds)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Counts.SwitchCommands != 4 || s.Counts.FetchFailures != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Config.SwitchID != 7 || s.Config.FallbackPolicy != "force_on" {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	now := time.Now()
	snap := Snapshot{StartTime: now, Now: now}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Switch != "UNKNOWN" {
		t.Errorf("Switch: got %q, want UNKNOWN", parsed.Status.Switch)
	}
	if parsed.Status.Tier != "UNKNOWN" {
		t.Errorf("Tier: got %q, want UNKNOWN", parsed.Status.Tier)
	}
	if parsed.Status.Period != "" || parsed.Status.LastFetch != "" {
		t.Errorf("expected empty period/last fetch, got %q/%q", parsed.Status.Period, parsed.Status.LastFetch)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{Switch: logic.StateOff, StartTime: now, Now: now}

	data := FormatStatusEvent(snap, "STARTUP", "")
	if strings.Contains(string(data), "\n") {
		t.Error("status event should be compact JSON")
	}

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("Event: got %q, want STARTUP", parsed.Status.Event)
	}
	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("reason should be omitted when empty: %s", data)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	now := time.Now()
	snap := Snapshot{StartTime: now, Now: now}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("got %q/%q, want SHUTDOWN/SIGTERM", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.SetSwitch(logic.StateOf(i%2 == 0))
			tr.SetClassification(logic.CodeTier1, logic.PeriodOffPeak)
			tr.SetMQTTConnected(i%2 == 0)
			tr.FetchSucceeded(time.Now())
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
