// Package config holds the immutable configuration snapshot for the peak switch
// and loads it from viper with store-persisted overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sweeney/peak-switch/internal/logic"
)

// Config is loaded once at startup and never changed afterwards.
type Config struct {
	SwitchID          int
	PeakStartHour     int
	PeakEndHour       int
	DailyRefreshHour  int
	RetryDelaySeconds int
	FallbackPolicy    logic.Policy
	Notifications     Notifications

	Source Source
	MQTT   MQTT
	GPIO   GPIO
	DBPath string
	HTTP   string
}

// Notifications configures the outbound alert channels.
type Notifications struct {
	Enabled bool
	Prefix  string
	Webhook Webhook
	Bus     Bus
}

// Webhook configures the HTTP alert channel.
type Webhook struct {
	Enabled bool
	URL     string
	Method  string // POST or GET
}

// Bus configures the MQTT alert channel.
type Bus struct {
	Enabled bool
	Topic   string
}

// Source configures the remote classification lookup.
type Source struct {
	URL     string
	Format  string // "day" or "calendar"
	Timeout time.Duration
}

// MQTT configures the broker connection.
type MQTT struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// GPIO configures the actuator chip.
type GPIO struct {
	Chip      string
	ActiveLow bool
}

const (
	FormatDay      = "day"
	FormatCalendar = "calendar"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		SwitchID:          0,
		PeakStartHour:     6,
		PeakEndHour:       22,
		DailyRefreshHour:  11,
		RetryDelaySeconds: 300,
		FallbackPolicy:    logic.PolicyKeepPrevious,
		Notifications: Notifications{
			Prefix:  "peak-switch",
			Webhook: Webhook{Method: http.MethodPost},
			Bus:     Bus{Topic: "energy/peak-switch/alerts"},
		},
		Source: Source{
			Format:  FormatDay,
			Timeout: 15 * time.Second,
		},
		MQTT: MQTT{
			Broker:      "tcp://127.0.0.1:1883",
			ClientID:    "peak-switch",
			TopicPrefix: "energy/peak-switch",
		},
		GPIO:   GPIO{Chip: "gpiochip0"},
		DBPath: "peak-switch.db",
		HTTP:   ":8080",
	}
}

// Window returns the daily boundaries used by the scheduler.
func (c Config) Window() logic.Window {
	return logic.Window{
		PeakStartHour:    c.PeakStartHour,
		PeakEndHour:      c.PeakEndHour,
		DailyRefreshHour: c.DailyRefreshHour,
	}
}

// RetryDelay returns the fetch retry delay.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// Validate checks the configuration once at load time. Problems that do not
// prevent operation are returned as warnings.
func (c Config) Validate() (warnings []string, err error) {
	var errs []error

	hours := []struct {
		key  string
		hour int
	}{
		{KeyPeakStartHour, c.PeakStartHour},
		{KeyPeakEndHour, c.PeakEndHour},
		{KeyDailyRefreshHour, c.DailyRefreshHour},
	}
	for _, h := range hours {
		if h.hour < 0 || h.hour > 23 {
			errs = append(errs, fmt.Errorf("%s must be in [0,23], got %d", h.key, h.hour))
		}
	}
	if c.SwitchID < 0 {
		errs = append(errs, fmt.Errorf("switch_id must not be negative, got %d", c.SwitchID))
	}
	if c.RetryDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("retry_delay_seconds must not be negative, got %d", c.RetryDelaySeconds))
	}
	if _, perr := logic.ParsePolicy(string(c.FallbackPolicy)); perr != nil {
		errs = append(errs, perr)
	}
	if c.Source.Format != FormatDay && c.Source.Format != FormatCalendar {
		errs = append(errs, fmt.Errorf("source.format must be %q or %q, got %q", FormatDay, FormatCalendar, c.Source.Format))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, errors.New("source.timeout must be positive"))
	}

	wh := c.Notifications.Webhook
	if wh.Enabled {
		if wh.URL == "" {
			errs = append(errs, errors.New("notifications.webhook.url is required when the webhook is enabled"))
		}
		if m := strings.ToUpper(wh.Method); m != http.MethodPost && m != http.MethodGet {
			errs = append(errs, fmt.Errorf("notifications.webhook.method must be POST or GET, got %q", wh.Method))
		}
	}
	if c.Notifications.Bus.Enabled && c.Notifications.Bus.Topic == "" {
		errs = append(errs, errors.New("notifications.bus.topic is required when the bus is enabled"))
	}

	if c.PeakStartHour == c.PeakEndHour {
		warnings = append(warnings, fmt.Sprintf("peak window is empty (start == end == %d): the switch will never turn on", c.PeakStartHour))
	}
	if c.Source.URL == "" {
		warnings = append(warnings, "source.url is empty: every fetch will fail")
	}
	if c.RetryDelaySeconds == 0 {
		warnings = append(warnings, "retry_delay_seconds is 0: failed fetches are retried immediately")
	}

	return warnings, errors.Join(errs...)
}
