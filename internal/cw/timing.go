// internal/cw/timing.go
// Package cw turns timed light flickers into text and text into timed light.
package cw

import (
	"errors"
	"fmt"
)

const (
	// MillisecondsPerMinute converts a pulse rate into a dit length
	MillisecondsPerMinute = 60000
	// DefaultPulsesPerMinute gives a one second dit, slow enough for a phone camera
	DefaultPulsesPerMinute = 60
)

// Ratios to the dit, as the International Telecommunication Union defines them
const (
	DahDitRatio         = 3
	InterCharSpaceRatio = 3
	WordSpaceRatio      = 7
)

var (
	// ErrInvalidDit indicates the dit duration must be positive
	ErrInvalidDit = errors.New("dit duration must be positive")
	// ErrInvalidPulseRate indicates pulses per minute must be positive
	ErrInvalidPulseRate = errors.New("pulses per minute must be positive")
)

// Range is a closed interval of milliseconds.
type Range struct {
	Min int64
	Max int64
}

// Contains reports whether Min <= ms <= Max.
func (r Range) Contains(ms int64) bool {
	return ms >= r.Min && ms <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d ms", r.Min, r.Max)
}

// Timing holds every duration derived from a single dit length, in
// milliseconds. Each error margin starts where the previous window ended,
// so the windows tile the time axis without gaps.
//
// A Timing is a value; a rate change produces a new one.
type Timing struct {
	Dit         int64
	Dah         int64
	SpaceLetter int64
	SpaceWord   int64

	DitError         int64
	DahError         int64
	SpaceLetterError int64
	SpaceWordError   int64

	// EndMessage is the shortest silence that closes the current message
	EndMessage int64
}

// NewTiming derives all thresholds from dit.
func NewTiming(dit int64) (Timing, error) {
	if dit <= 0 {
		return Timing{}, ErrInvalidDit
	}

	t := Timing{
		Dit:         dit,
		Dah:         dit * DahDitRatio,
		SpaceLetter: dit * InterCharSpaceRatio,
		SpaceWord:   dit * WordSpaceRatio,
		DitError:    dit / 2,
	}
	t.DahError = dit + t.DitError
	t.SpaceLetterError = t.SpaceLetter - (dit + t.DitError)
	t.SpaceWordError = t.SpaceWord - (t.SpaceLetter + t.SpaceLetterError)
	t.EndMessage = t.SpaceWord + t.SpaceWordError + 1
	return t, nil
}

// FromPulsesPerMinute converts a light pulse rate into a Timing with
// dit = 60000 / ppm milliseconds.
func FromPulsesPerMinute(ppm int) (Timing, error) {
	if ppm <= 0 {
		return Timing{}, ErrInvalidPulseRate
	}
	return NewTiming(int64(MillisecondsPerMinute / ppm))
}

// MustTiming is NewTiming for constants and tests.
func MustTiming(dit int64) Timing {
	t, err := NewTiming(dit)
	if err != nil {
		panic(err)
	}
	return t
}

// DitRange is the window for a dot mark and, on a rising edge, an
// intra-letter gap.
func (t Timing) DitRange() Range {
	return Range{Min: t.Dit - t.DitError, Max: t.Dit + t.DitError}
}

// DashRange is the window for a dash mark.
func (t Timing) DashRange() Range {
	return Range{Min: t.Dah - t.DahError, Max: t.Dah + t.DahError}
}

// SpaceLetterRange is the window for the gap between letters.
func (t Timing) SpaceLetterRange() Range {
	return Range{Min: t.SpaceLetter - t.SpaceLetterError, Max: t.SpaceLetter + t.SpaceLetterError}
}

// SpaceWordRange is the window for the gap between words.
func (t Timing) SpaceWordRange() Range {
	return Range{Min: t.SpaceWord - t.SpaceWordError, Max: t.SpaceWord + t.SpaceWordError}
}

// PulsesPerMinute reports the rate this timing corresponds to.
func (t Timing) PulsesPerMinute() int {
	if t.Dit <= 0 {
		return 0
	}
	return int(MillisecondsPerMinute / t.Dit)
}

// TimingFunc returns the timing currently in effect. Decoders and emitters
// call it on every step, so a configuration change applies mid-message.
type TimingFunc func() Timing

// FixedTiming returns a TimingFunc that always yields t.
func FixedTiming(t Timing) TimingFunc {
	return func() Timing { return t }
}
