// Package metrics exposes the switch's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/peak-switch/internal/logic"
)

const metricPrefix = "peakswitch_"

// Metrics groups the collectors updated by the engine and dispatcher.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetches        *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	actuatorErrors *prometheus.CounterVec
	switchState    prometheus.Gauge
	code           prometheus.Gauge
	nextWake       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "fetch_total",
			Help: "Classification lookups by result",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "notifications_total",
			Help: "Notification attempts by result",
		}, []string{"result"}),
		actuatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "actuator_errors_total",
			Help: "Failed actuator operations by operation",
		}, []string{"op"}),
		switchState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "switch_state",
			Help: "Last commanded switch state (1 = on)",
		}),
		code: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "classification_code",
			Help: "Classification code in effect for today (0 = unknown)",
		}),
		nextWake: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "next_wake_seconds",
			Help: "Delay of the currently armed wake timer",
		}),
	}
	reg.MustRegister(m.fetches, m.notifications, m.actuatorErrors, m.switchState, m.code, m.nextWake)
	return m
}

// Fetch counts a lookup outcome ("success", "transport", "semantic", "store").
func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
}

// Notification counts a notification outcome.
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// ActuatorError counts a failed "set" or "get".
func (m *Metrics) ActuatorError(op string) {
	if m == nil {
		return
	}
	m.actuatorErrors.WithLabelValues(op).Inc()
}

// SwitchState records the last commanded state.
func (m *Metrics) SwitchState(on bool) {
	if m == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	m.switchState.Set(v)
}

// Code records the classification in effect.
func (m *Metrics) Code(c logic.Code) {
	if m == nil {
		return
	}
	m.code.Set(float64(c))
}

// NextWake records the armed timer delay.
func (m *Metrics) NextWake(d time.Duration) {
	if m == nil {
		return
	}
	m.nextWake.Set(d.Seconds())
}
