package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/peak-switch/internal/config"
	"github.com/sweeney/peak-switch/internal/engine"
	"github.com/sweeney/peak-switch/internal/fetch"
	"github.com/sweeney/peak-switch/internal/gpio"
	"github.com/sweeney/peak-switch/internal/logic"
	"github.com/sweeney/peak-switch/internal/mqtt"
	"github.com/sweeney/peak-switch/internal/notify"
	"github.com/sweeney/peak-switch/internal/store"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

// source is a classification endpoint in the "day" format. The first
// failFirst requests answer 503.
type source struct {
	mu        sync.Mutex
	codes     map[string]int
	failFirst int
	requests  int
}

func (s *source) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.requests <= s.failFirst {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return
	}
	date := strings.TrimPrefix(r.URL.Path, "/")
	code, ok := s.codes[date]
	if !ok {
		w.Write([]byte(fmt.Sprintf(`{"date": %q, "code": 0}`, date)))
		return
	}
	w.Write([]byte(fmt.Sprintf(`{"date": %q, "code": %d}`, date, code)))
}

func (s *source) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

type hook struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (h *hook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg notify.Message
	json.NewDecoder(r.Body).Decode(&msg)
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
}

func (h *hook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

type rig struct {
	clock     *clock
	src       *source
	hook      *hook
	store     *store.SQLiteStore
	sw        *gpio.FakeSwitch
	publisher *mqtt.FakePublisher
	timer     *engine.FakeTimer
	engine    *engine.Engine
}

func newRig(t *testing.T, dbPath string, cfg config.Config, start time.Time, src *source) *rig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srcServer := httptest.NewServer(src)
	t.Cleanup(srcServer.Close)
	h := &hook{}
	hookServer := httptest.NewServer(h)
	t.Cleanup(hookServer.Close)

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	r := &rig{
		clock:     &clock{t: start},
		src:       src,
		hook:      h,
		store:     st,
		sw:        gpio.NewFakeSwitch(),
		publisher: mqtt.NewFakePublisher(),
		timer:     engine.NewFakeTimer(),
	}

	webhook, err := notify.NewWebhookChannel(hookServer.URL, http.MethodPost)
	if err != nil {
		t.Fatal(err)
	}
	bus, err := notify.NewBusChannel(r.publisher, cfg.Notifications.Bus.Topic)
	if err != nil {
		t.Fatal(err)
	}
	dispatcher := notify.NewDispatcher(true, cfg.Notifications.Prefix, []notify.Channel{webhook, bus},
		notify.WithClock(r.clock.now), notify.WithLogger(logger))

	fetcher := fetch.NewHTTPFetcher(srcServer.URL+"/"+fetch.DatePlaceholder, config.FormatDay, time.Second)

	r.engine = engine.New(cfg, st, fetcher, r.sw, dispatcher,
		engine.WithTimer(r.timer),
		engine.WithClock(r.clock.now),
		engine.WithLogger(logger),
		engine.WithEvents(r.publisher))
	return r
}

// wake advances the clock to the armed timer and handles it the way Run does.
func (r *rig) wake(t *testing.T) engine.ArmCall {
	t.Helper()
	arm, ok := r.timer.Last()
	if !ok || !r.timer.Pending() {
		t.Fatal("no timer armed")
	}
	r.clock.t = r.clock.t.Add(arm.Delay)
	r.timer.Cancel()
	if arm.Kind == engine.WakeRetry {
		r.engine.Fetch(context.Background())
	} else {
		r.engine.Evaluate(context.Background())
	}
	return arm
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SwitchID = 17
	cfg.RetryDelaySeconds = 30
	return cfg
}

// TestIntegrationDayCycle follows one day across every boundary into the next morning.
func TestIntegrationDayCycle(t *testing.T) {
	start := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	src := &source{codes: map[string]int{"2026-03-10": 3, "2026-03-11": 1}}
	r := newRig(t, filepath.Join(t.TempDir(), "day.db"), testConfig(), start, src)

	r.engine.Evaluate(context.Background())
	for r.clock.t.Before(time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)) {
		r.wake(t)
	}

	// 05:00 fetch → OFF, 06:02 ON, 11:02 ON (already fetched), 22:02 OFF, next day 06:02 fetch → OFF.
	want := []logic.EventType{
		logic.EventSwitchOff,
		logic.EventSwitchOn,
		logic.EventSwitchOn,
		logic.EventSwitchOff,
		logic.EventSwitchOff,
	}
	if len(r.publisher.Events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(r.publisher.Events), r.publisher.Events)
	}
	for i, ev := range r.publisher.Events {
		if ev.Type != want[i] {
			t.Errorf("event %d at %s: got %s, want %s", i, ev.Timestamp.Format("01-02 15:04"), ev.Type, want[i])
		}
		if ev.Reason != logic.ReasonSchedule {
			t.Errorf("event %d: reason %q, want schedule", i, ev.Reason)
		}
	}

	wantTimes := []string{"03-10 05:00", "03-10 06:02", "03-10 11:02", "03-10 22:02", "03-11 06:02"}
	for i, ev := range r.publisher.Events {
		if got := ev.Timestamp.Format("01-02 15:04"); got != wantTimes[i] {
			t.Errorf("event %d time: got %s, want %s", i, got, wantTimes[i])
		}
	}

	if src.count() != 2 {
		t.Errorf("expected one fetch per day (2), got %d", src.count())
	}
	if r.timer.Overlaps() != 0 {
		t.Errorf("overlapping timers: %d", r.timer.Overlaps())
	}

	var p mqtt.Payload
	if err := json.Unmarshal(r.publisher.Payloads[1], &p); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if p.Switch.Event != "SWITCH_ON" || p.Switch.Period != "PEAK" {
		t.Errorf("payload: got %+v", p.Switch)
	}
}

// TestIntegrationOutageFallbackAndRecovery covers retries, fallback and throttled alerts.
func TestIntegrationOutageFallbackAndRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackPolicy = logic.PolicyForceOn
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	src := &source{codes: map[string]int{"2026-03-10": 1}, failFirst: 3}
	r := newRig(t, filepath.Join(t.TempDir(), "outage.db"), cfg, start, src)

	r.engine.Evaluate(context.Background())
	if !r.sw.States[cfg.SwitchID] {
		t.Fatal("expected force_on fallback after the first failure")
	}

	for i := 0; i < 3; i++ {
		arm := r.wake(t)
		if arm.Kind != engine.WakeRetry || arm.Delay != 30*time.Second {
			t.Fatalf("wake %d: got %+v, want retry/30s", i, arm)
		}
	}

	if r.sw.States[cfg.SwitchID] {
		t.Error("expected OFF once TIER1 was fetched")
	}
	if arm, _ := r.timer.Last(); arm.Kind != engine.WakeEvaluate {
		t.Errorf("after recovery: got %v, want evaluate", arm.Kind)
	}
	if src.count() != 4 {
		t.Errorf("requests: got %d, want 4", src.count())
	}

	if r.hook.count() != 1 {
		t.Errorf("webhook deliveries: got %d, want 1 (throttled)", r.hook.count())
	}
	if len(r.publisher.Raw) != 1 || r.publisher.Raw[0].Topic != cfg.Notifications.Bus.Topic {
		t.Errorf("bus deliveries: got %+v", r.publisher.Raw)
	}
	var msg notify.Message
	if err := json.Unmarshal(r.publisher.Raw[0].Payload, &msg); err != nil {
		t.Fatalf("invalid bus payload: %v", err)
	}
	if !strings.HasPrefix(msg.Message, "[peak-switch] Classification fetch failed: transport failure (503)") {
		t.Errorf("bus message: got %q", msg.Message)
	}

	fallbacks := 0
	for _, ev := range r.publisher.Events {
		if ev.Reason == logic.ReasonFallback {
			fallbacks++
		}
	}
	if fallbacks != 3 {
		t.Errorf("fallback events: got %d, want 3", fallbacks)
	}
}

// TestIntegrationRestartUsesCache checks a restart on the same day does not refetch.
func TestIntegrationRestartUsesCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "restart.db")
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	src := &source{codes: map[string]int{"2026-03-10": 3}}

	first := newRig(t, dbPath, testConfig(), start, src)
	first.engine.Evaluate(context.Background())
	first.store.Close()
	if src.count() != 1 {
		t.Fatalf("first run: expected 1 request, got %d", src.count())
	}

	second := newRig(t, dbPath, testConfig(), start.Add(3*time.Hour), src)
	second.engine.Evaluate(context.Background())

	if src.count() != 1 {
		t.Errorf("restart refetched: %d requests", src.count())
	}
	if !second.sw.States[17] {
		t.Error("expected ON from the cached TIER3 classification")
	}
	last, ok, err := second.store.LastFetch()
	if err != nil || !ok || !last.Equal(start) {
		t.Errorf("last fetch: got %v ok=%v err=%v, want %v", last, ok, err, start)
	}
}

// TestIntegrationUnknownIsRetried treats an undecided classification as a failure.
func TestIntegrationUnknownIsRetried(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	src := &source{codes: map[string]int{}}
	r := newRig(t, filepath.Join(t.TempDir(), "unknown.db"), testConfig(), start, src)

	r.engine.Evaluate(context.Background())

	if arm, _ := r.timer.Last(); arm.Kind != engine.WakeRetry {
		t.Fatalf("expected a retry, got %v", arm.Kind)
	}
	if len(r.sw.Sets) != 0 {
		t.Errorf("keep_previous must not touch the switch, got %+v", r.sw.Sets)
	}

	src.mu.Lock()
	src.codes["2026-03-10"] = 2
	src.mu.Unlock()
	r.wake(t)

	if arm, _ := r.timer.Last(); arm.Kind != engine.WakeEvaluate {
		t.Errorf("expected evaluate after the retry succeeded, got %v", arm.Kind)
	}
	code, ok, _ := r.store.Get("2026-03-10")
	if !ok || code != logic.CodeTier2 {
		t.Errorf("stored: got %v ok=%v", code, ok)
	}
}
