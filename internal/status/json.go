package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Switch        string     `json:"switch"`
	Code          int        `json:"code"`
	Tier          string     `json:"tier"`
	Period        string     `json:"period,omitempty"`
	LastFetch     string     `json:"last_fetch,omitempty"`
	NextWake      string     `json:"next_wake,omitempty"`
	NextWakeKind  string     `json:"next_wake_kind,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   string     `json:"last_error_at,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Fetches        int `json:"fetches"`
	FetchFailures  int `json:"fetch_failures"`
	SwitchCommands int `json:"switch_commands"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SwitchID             int    `json:"switch_id"`
	PeakStartHour        int    `json:"peak_start_hour"`
	PeakEndHour          int    `json:"peak_end_hour"`
	DailyRefreshHour     int    `json:"daily_refresh_hour"`
	RetryDelaySeconds    int    `json:"retry_delay_seconds"`
	FallbackPolicy       string `json:"fallback_policy"`
	SourceURL            string `json:"source_url"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	HTTPAddr             string `json:"http_addr"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	sw := string(snap.Switch)
	if sw == "" {
		sw = "UNKNOWN"
	}
	period := ""
	if snap.Period != 0 {
		period = snap.Period.String()
	}

	return StatusInner{
		Switch:        sw,
		Code:          int(snap.Code),
		Tier:          snap.Code.String(),
		Period:        period,
		LastFetch:     formatTime(snap.LastFetch),
		NextWake:      formatTime(snap.NextWake),
		NextWakeKind:  snap.NextWakeKind,
		LastError:     snap.LastError,
		LastErrorAt:   formatTime(snap.LastErrorAt),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Fetches:        snap.Counts.Fetches,
			FetchFailures:  snap.Counts.FetchFailures,
			SwitchCommands: snap.Counts.SwitchCommands,
		},
		Config: ConfigJSON{
			SwitchID:             snap.Config.SwitchID,
			PeakStartHour:        snap.Config.PeakStartHour,
			PeakEndHour:          snap.Config.PeakEndHour,
			DailyRefreshHour:     snap.Config.DailyRefreshHour,
			RetryDelaySeconds:    snap.Config.RetryDelaySeconds,
			FallbackPolicy:       snap.Config.FallbackPolicy,
			SourceURL:            snap.Config.SourceURL,
			NotificationsEnabled: snap.Config.NotificationsEnabled,
			HTTPAddr:             snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
