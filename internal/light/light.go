// internal/light/light.go
// Package light drives the physical (or simulated) light a message is keyed on.
package light

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrUnknownDriver indicates the configured driver name is not supported
	ErrUnknownDriver = errors.New("unknown light driver")
	// ErrClosed indicates the driver was used after Close
	ErrClosed = errors.New("light driver closed")
)

// Driver switches a light on and off. Implementations need not be safe for
// concurrent use; the emitter calls them from one goroutine.
type Driver interface {
	Set(on bool) error
	Close() error
}

// Options selects and configures a driver.
type Options struct {
	// Driver is "console" or "serial"
	Driver string
	// Output receives console driver lines
	Output io.Writer
	// Port is the serial device path, e.g. /dev/ttyUSB0
	Port string
	// Line is the serial control line keying the light, "rts" or "dtr"
	Line string
	// BaudRate for the serial port
	BaudRate int
}

// Open returns the driver named in opts.
func Open(opts Options) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "console":
		return NewConsole(opts.Output), nil
	case "serial":
		return OpenSerial(opts.Port, opts.Line, opts.BaudRate)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
