// Package engine is the scheduling and reconciliation loop: it keeps today's
// classification current, drives the switch from it, and arms exactly one
// wake timer for the next boundary, refresh or retry.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/peak-switch/internal/config"
	"github.com/sweeney/peak-switch/internal/fetch"
	"github.com/sweeney/peak-switch/internal/gpio"
	"github.com/sweeney/peak-switch/internal/logic"
	"github.com/sweeney/peak-switch/internal/metrics"
	"github.com/sweeney/peak-switch/internal/mqtt"
	"github.com/sweeney/peak-switch/internal/notify"
	"github.com/sweeney/peak-switch/internal/status"
	"github.com/sweeney/peak-switch/internal/store"
)

// RetentionDays is how long cached classifications are kept.
const RetentionDays = 31

// FailureTitle is the notification title for a failed lookup.
const FailureTitle = "Classification fetch failed"

// Notifier sends a throttled alert. *notify.Dispatcher implements it.
type Notifier interface {
	Notify(ctx context.Context, title, detail string, sev notify.Severity) notify.Outcome
}

// EventPublisher receives every actuator command. mqtt.Publisher implements it.
type EventPublisher interface {
	Publish(event logic.Event) error
}

// Engine owns the timer handle and all scheduling decisions. It is not safe
// for concurrent use: Evaluate, Fetch and Run must be called from one goroutine.
type Engine struct {
	cfg      config.Config
	window   logic.Window
	store    store.Classifications
	fetcher  fetch.Fetcher
	sw       gpio.Switch
	notifier Notifier
	timer    Timer
	now      func() time.Time
	logger   *slog.Logger

	events  EventPublisher
	tracker *status.Tracker
	conn    mqtt.ConnectionStatus
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimer replaces the real timer.
func WithTimer(t Timer) Option {
	return func(e *Engine) { e.timer = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEvents publishes every actuator command.
func WithEvents(p EventPublisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithTracker mirrors engine state into a status tracker.
func WithTracker(t *status.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithConnectionStatus refreshes the tracker's MQTT flag on every wake.
func WithConnectionStatus(c mqtt.ConnectionStatus) Option {
	return func(e *Engine) { e.conn = c }
}

// WithMetrics records engine activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine. cfg must already be validated.
func New(cfg config.Config, st store.Classifications, f fetch.Fetcher, sw gpio.Switch, n Notifier, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		window:   cfg.Window(),
		store:    st,
		fetcher:  f,
		sw:       sw,
		notifier: n,
		timer:    NewRealTimer(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates once and then serves timer wakes until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.Evaluate(ctx)

	for {
		select {
		case <-ctx.Done():
			e.timer.Cancel()
			return nil

		case <-e.timer.C():
			kind := e.timer.Kind()
			e.timer.Cancel()
			e.refreshConnection()

			e.logger.Debug("wake", "kind", kind)
			if kind == WakeRetry {
				e.Fetch(ctx)
			} else {
				e.Evaluate(ctx)
			}
		}
	}
}

// Evaluate resolves today's classification, commands the switch and arms
// the next wake. A cache miss triggers Fetch, which schedules on its own.
func (e *Engine) Evaluate(ctx context.Context) {
	e.evaluate(ctx, false)
}

// evaluate runs one cycle. afterFetch is set when re-entered from a
// successful Fetch; it stops the cycle from fetching again.
func (e *Engine) evaluate(ctx context.Context, afterFetch bool) {
	now := e.now()
	today := logic.DateOf(now)

	code, ok, err := e.store.Get(today)
	if err != nil {
		e.logger.Warn("classification lookup failed", "date", today, "err", err)
		ok = false
	}
	if !ok || !code.Known() {
		if afterFetch {
			e.fail(ctx, now, fetch.Semantic(string(today)+" not readable after store", fetch.ErrUndecided), "semantic")
			return
		}
		e.logger.Info("no usable classification cached", "date", today, "cached", ok, "code", code)
		e.Fetch(ctx)
		return
	}

	period := e.window.PeriodAt(now)
	on := logic.TargetOn(period, code)
	e.metrics.Code(code)
	if e.tracker != nil {
		e.tracker.SetClassification(code, period)
	}
	e.apply(now, on, code, period, logic.ReasonSchedule)

	if !afterFetch && e.window.InRefreshWindow(now) && !e.fetchedOn(today) {
		e.logger.Info("in refresh window with no fetch today", "refresh_hour", e.cfg.DailyRefreshHour)
		e.Fetch(ctx)
		return
	}

	e.arm(e.window.NextCheckDelay(now), WakeEvaluate)
}

// Fetch performs the remote lookup for today. Success persists the entries
// and re-enters Evaluate; failure notifies, applies the fallback policy and
// arms a retry.
func (e *Engine) Fetch(ctx context.Context) {
	now := e.now()
	today := logic.DateOf(now)

	e.logger.Info("fetching classification", "date", today)
	entries, err := e.fetcher.Fetch(ctx, today)
	if err != nil {
		// Shutting down: leave the switch, the alert cooldown and the timer alone.
		if ctx.Err() != nil {
			e.logger.Info("fetch abandoned", "date", today, "err", context.Cause(ctx))
			return
		}
		e.fail(ctx, now, err, fetch.KindOf(err).String())
		return
	}
	if err := e.store.Put(entries); err != nil {
		e.fail(ctx, now, fmt.Errorf("persist classifications: %w", err), "store")
		return
	}
	if err := e.store.SetLastFetch(now); err != nil {
		e.logger.Warn("failed to record fetch time", "err", err)
	}
	if n, err := e.store.Prune(today.AddDays(-RetentionDays)); err != nil {
		e.logger.Warn("failed to prune classifications", "err", err)
	} else if n > 0 {
		e.logger.Debug("pruned classifications", "removed", n)
	}

	e.metrics.Fetch("success")
	if e.tracker != nil {
		e.tracker.FetchSucceeded(now)
	}
	e.logger.Info("classification fetched", "date", today, "entries", len(entries))

	e.evaluate(ctx, true)
}

// fail handles a lookup that produced no usable classification. result
// labels the failure for metrics: "transport", "semantic" or "store".
func (e *Engine) fail(ctx context.Context, now time.Time, err error, result string) {
	delay := e.cfg.RetryDelay()

	e.logger.Warn("classification fetch failed", "kind", result, "err", err, "retry_in", delay)
	e.metrics.Fetch(result)
	if e.tracker != nil {
		e.tracker.FetchFailed(now, err.Error())
	}

	detail := fmt.Sprintf("%v. Retrying in %s", err, humanDuration(delay))
	e.notifier.Notify(ctx, FailureTitle, detail, notify.SeverityError)

	period := e.window.PeriodAt(now)
	switch e.cfg.FallbackPolicy {
	case logic.PolicyForceOn:
		e.apply(now, true, logic.CodeUnknown, period, logic.ReasonFallback)
	case logic.PolicyForceOff:
		e.apply(now, false, logic.CodeUnknown, period, logic.ReasonFallback)
	default:
		e.logger.Info("fallback keeps previous switch state")
	}

	e.arm(delay, WakeRetry)
}

// apply commands the switch and reads it back. Actuator errors are logged
// and absorbed; the next cycle tries again.
func (e *Engine) apply(now time.Time, on bool, code logic.Code, period logic.Period, reason logic.Reason) {
	id := e.cfg.SwitchID
	state := logic.StateOf(on)

	if err := e.sw.Set(id, on); err != nil {
		e.logger.Error("switch set failed", "switch", id, "state", state, "err", err)
		e.metrics.ActuatorError("set")
		return
	}
	e.logger.Info("switch commanded", "switch", id, "state", state, "code", code, "period", period, "reason", reason)
	e.metrics.SwitchState(on)
	if e.tracker != nil {
		e.tracker.SetSwitch(state)
	}

	actual, err := e.sw.Get(id)
	switch {
	case err != nil:
		e.logger.Warn("switch read-back failed", "switch", id, "err", err)
		e.metrics.ActuatorError("get")
	case actual != on:
		e.logger.Warn("switch read-back mismatch", "switch", id, "want", state, "got", logic.StateOf(actual))
	default:
		e.logger.Debug("switch read-back", "switch", id, "state", logic.StateOf(actual))
	}

	if e.events != nil {
		if err := e.events.Publish(logic.NewEvent(now, on, code, period, reason)); err != nil {
			e.logger.Warn("event publish failed", "err", err)
		}
	}
}

// arm replaces any pending wake with one after d.
func (e *Engine) arm(d time.Duration, kind WakeKind) {
	e.timer.Cancel()
	e.timer.Arm(d, kind)

	at := e.now().Add(d)
	e.metrics.NextWake(d)
	if e.tracker != nil {
		e.tracker.SetNextWake(at, kind.String())
	}
	e.logger.Info("next wake armed", "kind", kind, "in", d, "at", at.Format("2006-01-02 15:04:05"))
}

func (e *Engine) fetchedOn(date logic.Date) bool {
	t, ok, err := e.store.LastFetch()
	if err != nil {
		e.logger.Warn("failed to read last fetch time", "err", err)
		return false
	}
	return ok && logic.DateOf(t) == date
}

func (e *Engine) refreshConnection() {
	if e.tracker != nil && e.conn != nil {
		e.tracker.SetMQTTConnected(e.conn.IsConnected())
	}
}

// humanDuration renders d as e.g. "30 seconds" or "5 minutes 30 seconds".
func humanDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	m, s := secs/60, secs%60
	switch {
	case m == 0:
		return plural(s, "second")
	case s == 0:
		return plural(m, "minute")
	default:
		return plural(m, "minute") + " " + plural(s, "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
