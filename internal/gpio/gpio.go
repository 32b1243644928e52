// Package gpio drives the switch actuator with hardware abstraction.
// The real implementation uses Linux GPIO character device output lines.
// The fake implementation allows testing without hardware.
package gpio

// Switch sets and reads actuator outputs. A switch id is the GPIO line offset.
type Switch interface {
	// Set drives switch id on or off.
	Set(id int, on bool) error

	// Get reads back the logical state of switch id.
	Get(id int) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the Raspberry Pi header GPIO chip.
const DefaultChip = "gpiochip0"
