//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealSwitch drives relays through the Linux GPIO character device.
type RealSwitch struct {
	mu        sync.Mutex
	chip      *gpiocdev.Chip
	lines     map[int]*gpiocdev.Line
	activeLow bool
}

// NewRealSwitch opens the named chip. Lines are requested on first use.
// With activeLow, a logical ON drives the line low (common for relay boards).
func NewRealSwitch(chipName string, activeLow bool) (*RealSwitch, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealSwitch{
		chip:      chip,
		lines:     make(map[int]*gpiocdev.Line),
		activeLow: activeLow,
	}, nil
}

func (s *RealSwitch) line(id int, initial int) (*gpiocdev.Line, error) {
	if l, ok := s.lines[id]; ok {
		return l, nil
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(initial)}
	if s.activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	l, err := s.chip.RequestLine(id, opts...)
	if err != nil {
		return nil, fmt.Errorf("request switch pin %d: %w", id, err)
	}
	s.lines[id] = l
	return l, nil
}

// Set drives switch id on or off.
func (s *RealSwitch) Set(id int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := 0
	if on {
		v = 1
	}
	l, err := s.line(id, v)
	if err != nil {
		return err
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set switch pin %d: %w", id, err)
	}
	return nil
}

// Get reads back the logical state of switch id. An unrequested line is
// requested as output low, so reading an untouched switch turns it off.
func (s *RealSwitch) Get(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.line(id, 0)
	if err != nil {
		return false, err
	}
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read switch pin %d: %w", id, err)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults) before
// closing so relays drop out cleanly on shutdown/reboot.
func (s *RealSwitch) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, l := range s.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure switch pin %d: %w", id, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close switch pin %d: %w", id, err))
		}
	}
	s.lines = make(map[int]*gpiocdev.Line)
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
