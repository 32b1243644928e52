package engine

import (
	"sync"
	"time"
)

// WakeKind selects what the run loop does when the armed timer fires.
type WakeKind int

const (
	WakeNone     WakeKind = iota
	WakeEvaluate          // boundary or refresh wake: re-run Evaluate
	WakeRetry             // failed lookup: re-run Fetch
)

func (k WakeKind) String() string {
	switch k {
	case WakeEvaluate:
		return "evaluate"
	case WakeRetry:
		return "retry"
	default:
		return "none"
	}
}

// Timer is the single wake-up handle owned by the engine.
type Timer interface {
	// Arm schedules a wake after d. Callers cancel first.
	Arm(d time.Duration, kind WakeKind)

	// Cancel disarms the timer. Cancelling an idle or fired timer is a no-op.
	Cancel()

	// C returns the fire channel, or nil while nothing is armed.
	C() <-chan time.Time

	// Kind returns the kind of the armed wake, or WakeNone.
	Kind() WakeKind
}

// RealTimer wraps a single reusable time.Timer.
type RealTimer struct {
	t    *time.Timer
	kind WakeKind
}

var _ Timer = (*RealTimer)(nil)

// NewRealTimer returns an idle RealTimer.
func NewRealTimer() *RealTimer {
	return &RealTimer{}
}

func (r *RealTimer) Arm(d time.Duration, kind WakeKind) {
	if r.t == nil {
		r.t = time.NewTimer(d)
	} else {
		// Stop and Reset discard any stale fire since Go 1.23.
		r.t.Reset(d)
	}
	r.kind = kind
}

func (r *RealTimer) Cancel() {
	if r.t != nil {
		r.t.Stop()
	}
	r.kind = WakeNone
}

func (r *RealTimer) C() <-chan time.Time {
	if r.kind == WakeNone {
		return nil
	}
	return r.t.C
}

func (r *RealTimer) Kind() WakeKind {
	return r.kind
}

// ArmCall is one recorded FakeTimer.Arm.
type ArmCall struct {
	Delay time.Duration
	Kind  WakeKind
}

// FakeTimer is a test double that records arms and fires on demand.
type FakeTimer struct {
	mu       sync.Mutex
	arms     []ArmCall
	cancels  int
	overlaps int
	kind     WakeKind
	ch       chan time.Time
}

var _ Timer = (*FakeTimer)(nil)

// NewFakeTimer returns an idle FakeTimer.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{ch: make(chan time.Time, 1)}
}

// Arm records the call. Arming while another wake is pending counts as an overlap.
func (f *FakeTimer) Arm(d time.Duration, kind WakeKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kind != WakeNone {
		f.overlaps++
	}
	f.drain()
	f.arms = append(f.arms, ArmCall{Delay: d, Kind: kind})
	f.kind = kind
}

func (f *FakeTimer) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.drain()
	f.kind = WakeNone
}

func (f *FakeTimer) C() <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kind == WakeNone {
		return nil
	}
	return f.ch
}

func (f *FakeTimer) Kind() WakeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

// Fire delivers t on the channel if a wake is pending.
func (f *FakeTimer) Fire(t time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kind == WakeNone {
		return false
	}
	select {
	case f.ch <- t:
	default:
	}
	return true
}

// Pending reports whether a wake is armed.
func (f *FakeTimer) Pending() bool {
	return f.Kind() != WakeNone
}

// Arms returns a copy of all recorded arms.
func (f *FakeTimer) Arms() []ArmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ArmCall(nil), f.arms...)
}

// Last returns the most recent arm and whether there was one.
func (f *FakeTimer) Last() (ArmCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.arms) == 0 {
		return ArmCall{}, false
	}
	return f.arms[len(f.arms)-1], true
}

// Cancels returns the number of Cancel calls.
func (f *FakeTimer) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// Overlaps returns how often Arm found a wake already pending.
func (f *FakeTimer) Overlaps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlaps
}

func (f *FakeTimer) drain() {
	select {
	case <-f.ch:
	default:
	}
}
