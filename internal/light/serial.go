// internal/light/serial.go
package light

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

const (
	// LineRTS keys the light with the Request To Send line
	LineRTS = "rts"
	// LineDTR keys the light with the Data Terminal Ready line
	LineDTR = "dtr"
	// DefaultBaudRate is used when none is configured; only the control
	// lines matter for keying
	DefaultBaudRate = 9600
)

var (
	// ErrUnknownLine indicates the control line is not rts or dtr
	ErrUnknownLine = errors.New("serial line must be rts or dtr")
	// ErrPortRequired indicates a serial device path is required
	ErrPortRequired = errors.New("serial port path is required")
)

// ControlLines is the part of a serial port used for keying. serial.Port
// satisfies it.
type ControlLines interface {
	SetRTS(rts bool) error
	SetDTR(dtr bool) error
	Close() error
}

// Serial keys an LED or relay wired to a serial control line, the same way
// a transceiver is keyed from a PC.
type Serial struct {
	port   ControlLines
	line   string
	closed bool
}

// OpenSerial opens path and keys the given line.
func OpenSerial(path, line string, baudRate int) (*Serial, error) {
	if path == "" {
		return nil, ErrPortRequired
	}
	line, err := normalizeLine(line)
	if err != nil {
		return nil, err
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	s, err := NewSerial(port, line)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return s, nil
}

// NewSerial wraps an already open port. The light starts off.
func NewSerial(port ControlLines, line string) (*Serial, error) {
	line, err := normalizeLine(line)
	if err != nil {
		return nil, err
	}
	s := &Serial{port: port, line: line}
	if err := s.Set(false); err != nil {
		return nil, err
	}
	return s, nil
}

func normalizeLine(line string) (string, error) {
	switch l := strings.ToLower(strings.TrimSpace(line)); l {
	case "", LineRTS:
		return LineRTS, nil
	case LineDTR:
		return LineDTR, nil
	default:
		return "", fmt.Errorf("%w, got %q", ErrUnknownLine, line)
	}
}

// Set raises or drops the control line.
func (s *Serial) Set(on bool) error {
	if s.closed {
		return ErrClosed
	}
	var err error
	if s.line == LineDTR {
		err = s.port.SetDTR(on)
	} else {
		err = s.port.SetRTS(on)
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", s.line, err)
	}
	return nil
}

// Close drops the line and releases the port.
func (s *Serial) Close() error {
	if s.closed {
		return nil
	}
	offErr := s.Set(false)
	s.closed = true
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return offErr
}
