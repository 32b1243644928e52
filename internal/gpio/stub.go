//go:build !linux

package gpio

import "errors"

// RealSwitch is not available on non-Linux platforms.
type RealSwitch struct{}

// NewRealSwitch returns an error on non-Linux platforms.
func NewRealSwitch(chipName string, activeLow bool) (*RealSwitch, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (s *RealSwitch) Set(id int, on bool) error {
	return errors.New("gpio: not supported")
}

// Get is not implemented on non-Linux platforms.
func (s *RealSwitch) Get(id int) (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealSwitch) Close() error {
	return nil
}
