package serial

import (
	"errors"
	"io"
)

var (
	ErrNilConfig  = errors.New("config cannot be nil")
	ErrNoDevice   = errors.New("no serial device given")
	ErrBadBaud    = errors.New("baud rate must be positive")
	ErrBadTimeout = errors.New("read timeout cannot be negative")
)

// Port is the host end of the trace UART.
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory streams (for tests and the simulator)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate of the firmware trace UART
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultBaud matches the firmware trace UART
const DefaultBaud = 115200

// DefaultConfig returns the trace port configuration for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}

// Validate checks the configuration before the port is opened
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		return ErrBadBaud
	}
	if c.ReadTimeout < 0 {
		return ErrBadTimeout
	}
	return nil
}
