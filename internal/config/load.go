package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/sweeney/peak-switch/internal/logic"
)

// Viper keys.
const (
	KeySwitchID             = "switch_id"
	KeyPeakStartHour        = "peak_start_hour"
	KeyPeakEndHour          = "peak_end_hour"
	KeyDailyRefreshHour     = "daily_refresh_hour"
	KeyRetryDelaySeconds    = "retry_delay_seconds"
	KeyFallbackPolicy       = "fallback_policy"
	KeyNotificationsEnabled = "notifications.enabled"
	KeyNotificationsPrefix  = "notifications.prefix"
	KeyWebhookEnabled       = "notifications.webhook.enabled"
	KeyWebhookURL           = "notifications.webhook.url"
	KeyWebhookMethod        = "notifications.webhook.method"
	KeyBusEnabled           = "notifications.bus.enabled"
	KeyBusTopic             = "notifications.bus.topic"
	KeySourceURL            = "source.url"
	KeySourceFormat         = "source.format"
	KeySourceTimeout        = "source.timeout"
	KeyMQTTBroker           = "mqtt.broker"
	KeyMQTTClientID         = "mqtt.client_id"
	KeyMQTTTopicPrefix      = "mqtt.topic_prefix"
	KeyGPIOChip             = "gpio.chip"
	KeyGPIOActiveLow        = "gpio.active_low"
	KeyDB                   = "db"
	KeyHTTP                 = "http"
)

// EnvPrefix is the environment variable prefix read by viper.
const EnvPrefix = "PEAKSWITCH"

// SetDefaults registers Default() with v and enables environment lookups.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeySwitchID, d.SwitchID)
	v.SetDefault(KeyPeakStartHour, d.PeakStartHour)
	v.SetDefault(KeyPeakEndHour, d.PeakEndHour)
	v.SetDefault(KeyDailyRefreshHour, d.DailyRefreshHour)
	v.SetDefault(KeyRetryDelaySeconds, d.RetryDelaySeconds)
	v.SetDefault(KeyFallbackPolicy, string(d.FallbackPolicy))
	v.SetDefault(KeyNotificationsEnabled, d.Notifications.Enabled)
	v.SetDefault(KeyNotificationsPrefix, d.Notifications.Prefix)
	v.SetDefault(KeyWebhookEnabled, d.Notifications.Webhook.Enabled)
	v.SetDefault(KeyWebhookURL, d.Notifications.Webhook.URL)
	v.SetDefault(KeyWebhookMethod, d.Notifications.Webhook.Method)
	v.SetDefault(KeyBusEnabled, d.Notifications.Bus.Enabled)
	v.SetDefault(KeyBusTopic, d.Notifications.Bus.Topic)
	v.SetDefault(KeySourceURL, d.Source.URL)
	v.SetDefault(KeySourceFormat, d.Source.Format)
	v.SetDefault(KeySourceTimeout, d.Source.Timeout)
	v.SetDefault(KeyMQTTBroker, d.MQTT.Broker)
	v.SetDefault(KeyMQTTClientID, d.MQTT.ClientID)
	v.SetDefault(KeyMQTTTopicPrefix, d.MQTT.TopicPrefix)
	v.SetDefault(KeyGPIOChip, d.GPIO.Chip)
	v.SetDefault(KeyGPIOActiveLow, d.GPIO.ActiveLow)
	v.SetDefault(KeyDB, d.DBPath)
	v.SetDefault(KeyHTTP, d.HTTP)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper builds a Config from the values currently held by v.
func FromViper(v *viper.Viper) Config {
	return Config{
		SwitchID:          v.GetInt(KeySwitchID),
		PeakStartHour:     v.GetInt(KeyPeakStartHour),
		PeakEndHour:       v.GetInt(KeyPeakEndHour),
		DailyRefreshHour:  v.GetInt(KeyDailyRefreshHour),
		RetryDelaySeconds: v.GetInt(KeyRetryDelaySeconds),
		FallbackPolicy:    logic.Policy(v.GetString(KeyFallbackPolicy)),
		Notifications: Notifications{
			Enabled: v.GetBool(KeyNotificationsEnabled),
			Prefix:  v.GetString(KeyNotificationsPrefix),
			Webhook: Webhook{
				Enabled: v.GetBool(KeyWebhookEnabled),
				URL:     v.GetString(KeyWebhookURL),
				Method:  strings.ToUpper(v.GetString(KeyWebhookMethod)),
			},
			Bus: Bus{
				Enabled: v.GetBool(KeyBusEnabled),
				Topic:   v.GetString(KeyBusTopic),
			},
		},
		Source: Source{
			URL:     v.GetString(KeySourceURL),
			Format:  v.GetString(KeySourceFormat),
			Timeout: v.GetDuration(KeySourceTimeout),
		},
		MQTT: MQTT{
			Broker:      v.GetString(KeyMQTTBroker),
			ClientID:    v.GetString(KeyMQTTClientID),
			TopicPrefix: v.GetString(KeyMQTTTopicPrefix),
		},
		GPIO: GPIO{
			Chip:      v.GetString(KeyGPIOChip),
			ActiveLow: v.GetBool(KeyGPIOActiveLow),
		},
		DBPath: v.GetString(KeyDB),
		HTTP:   v.GetString(KeyHTTP),
	}
}
