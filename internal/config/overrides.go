package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/peak-switch/internal/logic"
)

// OverridePrefix marks configuration overrides in the settings store.
const OverridePrefix = "config."

type setter func(c *Config, value string) error

func intField(f func(c *Config) *int) setter {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

func boolField(f func(c *Config) *bool) setter {
	return func(c *Config, value string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		*f(c) = b
		return nil
	}
}

func stringField(f func(c *Config) *string) setter {
	return func(c *Config, value string) error {
		*f(c) = strings.TrimSpace(value)
		return nil
	}
}

// overrides maps a settings key (without OverridePrefix) to its field.
var overrides = map[string]setter{
	KeySwitchID:          intField(func(c *Config) *int { return &c.SwitchID }),
	KeyPeakStartHour:     intField(func(c *Config) *int { return &c.PeakStartHour }),
	KeyPeakEndHour:       intField(func(c *Config) *int { return &c.PeakEndHour }),
	KeyDailyRefreshHour:  intField(func(c *Config) *int { return &c.DailyRefreshHour }),
	KeyRetryDelaySeconds: intField(func(c *Config) *int { return &c.RetryDelaySeconds }),
	KeyFallbackPolicy: func(c *Config, value string) error {
		p, err := logic.ParsePolicy(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		c.FallbackPolicy = p
		return nil
	},
	KeyNotificationsEnabled: boolField(func(c *Config) *bool { return &c.Notifications.Enabled }),
	KeyNotificationsPrefix:  stringField(func(c *Config) *string { return &c.Notifications.Prefix }),
	KeyWebhookEnabled:       boolField(func(c *Config) *bool { return &c.Notifications.Webhook.Enabled }),
	KeyWebhookURL:           stringField(func(c *Config) *string { return &c.Notifications.Webhook.URL }),
	KeyWebhookMethod: func(c *Config, value string) error {
		c.Notifications.Webhook.Method = strings.ToUpper(strings.TrimSpace(value))
		return nil
	},
	KeyBusEnabled:   boolField(func(c *Config) *bool { return &c.Notifications.Bus.Enabled }),
	KeyBusTopic:     stringField(func(c *Config) *string { return &c.Notifications.Bus.Topic }),
	KeySourceURL:    stringField(func(c *Config) *string { return &c.Source.URL }),
	KeySourceFormat: stringField(func(c *Config) *string { return &c.Source.Format }),
	KeySourceTimeout: func(c *Config, value string) error {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		c.Source.Timeout = d
		return nil
	},
}

// OverrideKeys lists the keys that can be overridden from the store.
func OverrideKeys() []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckOverride reports whether key (without prefix) accepts value.
func CheckOverride(key, value string) error {
	set, ok := overrides[key]
	if !ok {
		return fmt.Errorf("unknown override key %q", key)
	}
	c := Default()
	if err := set(&c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// ApplyOverrides applies store settings carrying OverridePrefix to c.
// Keys without the prefix or not in the override table are returned as ignored.
// Values that fail to parse are skipped and reported in err.
func ApplyOverrides(c *Config, settings map[string]string) (applied, ignored []string, err error) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, full := range keys {
		key, ok := strings.CutPrefix(full, OverridePrefix)
		if !ok {
			ignored = append(ignored, full)
			continue
		}
		set, ok := overrides[key]
		if !ok {
			ignored = append(ignored, full)
			continue
		}
		if serr := set(c, settings[full]); serr != nil {
			errs = append(errs, fmt.Errorf("override %s=%q: %w", key, settings[full], serr))
			continue
		}
		applied = append(applied, key)
	}
	return applied, ignored, errors.Join(errs...)
}
