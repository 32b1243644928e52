// Package notify sends best-effort, throttled alerts through the configured channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultCooldown is the minimum interval between two dispatched alerts.
const DefaultCooldown = time.Hour

// Message is the payload delivered to every channel.
type Message struct {
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Timestamp string   `json:"timestamp"`
}

// Channel delivers a message.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Outcome reports what Notify did.
type Outcome int

const (
	Disabled Outcome = iota
	Suppressed
	Dispatched
)

func (o Outcome) String() string {
	switch o {
	case Suppressed:
		return "suppressed"
	case Dispatched:
		return "dispatched"
	default:
		return "disabled"
	}
}

// Dispatcher fans a message out to its channels under a single global cooldown.
type Dispatcher struct {
	enabled  bool
	prefix   string
	channels []Channel
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observe  func(result string)

	mu       sync.Mutex
	lastSent time.Time
	sent     bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(n *Dispatcher) { n.cooldown = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Dispatcher) { n.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Dispatcher) { n.logger = l }
}

// WithObserver receives "sent", "failed" per channel attempt and "suppressed" per throttled call.
func WithObserver(f func(result string)) Option {
	return func(n *Dispatcher) { n.observe = f }
}

// NewDispatcher creates a Dispatcher. With enabled false, Notify is a no-op.
func NewDispatcher(enabled bool, prefix string, channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		enabled:  enabled,
		prefix:   prefix,
		channels: channels,
		cooldown: DefaultCooldown,
		now:      time.Now,
		logger:   slog.Default(),
		observe:  func(string) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Format builds the "[prefix] title: detail" message text.
func Format(prefix, title, detail string) string {
	return fmt.Sprintf("[%s] %s: %s", prefix, title, detail)
}

// Notify dispatches title/detail unless disabled or within the cooldown of
// the previous dispatch. The cooldown starts at the attempt, not at delivery.
// Channel failures are logged and never returned.
func (d *Dispatcher) Notify(ctx context.Context, title, detail string, sev Severity) Outcome {
	if !d.enabled {
		return Disabled
	}

	now := d.now()
	d.mu.Lock()
	if d.sent && now.Sub(d.lastSent) < d.cooldown {
		next := d.lastSent.Add(d.cooldown)
		d.mu.Unlock()
		d.logger.Info("notification suppressed", "title", title, "next_allowed", next.Format(time.RFC3339))
		d.observe("suppressed")
		return Suppressed
	}
	d.lastSent = now
	d.sent = true
	d.mu.Unlock()

	msg := Message{
		Message:   Format(d.prefix, title, detail),
		Severity:  sev,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	d.logger.Info("dispatching notification", "message", msg.Message, "severity", sev, "channels", len(d.channels))

	for _, ch := range d.channels {
		if err := ch.Send(ctx, msg); err != nil {
			d.logger.Warn("notification channel failed", "channel", ch.Name(), "err", err)
			d.observe("failed")
			continue
		}
		d.observe("sent")
	}
	return Dispatched
}
