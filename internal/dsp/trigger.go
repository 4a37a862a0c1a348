// internal/dsp/trigger.go
package dsp

import (
	"errors"

	"github.com/ColonelBlimp/luminar/internal/cw"
)

var (
	// ErrInvalidThreshold indicates threshold must be between 0 and 1
	ErrInvalidThreshold = errors.New("threshold must be between 0.0 and 1.0")
	// ErrInvalidHysteresis indicates hysteresis must be non-negative
	ErrInvalidHysteresis = errors.New("hysteresis must be non-negative")
	// ErrInvalidAGCDecay indicates AGC decay must be between 0 and 1
	ErrInvalidAGCDecay = errors.New("agc decay must be between 0.0 and 1.0")
	// ErrInvalidAGCAttack indicates AGC attack must be between 0 and 1
	ErrInvalidAGCAttack = errors.New("agc attack must be between 0.0 and 1.0")
	// ErrInvalidAGCWarmup indicates AGC warmup blocks must be non-negative
	ErrInvalidAGCWarmup = errors.New("agc warmup blocks must be non-negative")
	// ErrGoertzelRequired indicates Goertzel instance is required
	ErrGoertzelRequired = errors.New("goertzel instance is required")
)

// minPeak keeps the AGC divisor away from zero.
const minPeak = 0.001

// FlickerFunc receives each confirmed light edge. It runs on the audio
// path and must not block.
type FlickerFunc func(cw.Flicker)

// TriggerConfig tunes edge detection (config keys in parentheses).
type TriggerConfig struct {
	// Threshold on the (AGC normalized) magnitude, 0..1 (threshold)
	Threshold float64
	// Hysteresis is consecutive blocks needed to confirm an edge (hysteresis)
	Hysteresis int
	// AGCEnabled normalizes magnitude by a tracked peak (agc_enabled)
	AGCEnabled bool
	// AGCDecay is the per-block peak decay factor (agc_decay)
	AGCDecay float64
	// AGCAttack is how fast the peak follows a louder block (agc_attack)
	AGCAttack float64
	// AGCWarmupBlocks are measured for calibration before any edge fires
	AGCWarmupBlocks int
	// StartMs is the wall clock time of the first sample; edge timestamps
	// advance from it by the sample clock
	StartMs int64
}

// Trigger turns a sample stream into light edges. Timestamps come from the
// number of samples consumed, not from when Process is called, so capture
// buffering does not skew mark and gap durations.
type Trigger struct {
	config   TriggerConfig
	goertzel *Goertzel

	buf     []float32
	samples int64

	peak   float64
	warmup int

	lit     bool
	pending bool
	count   int

	onFlicker FlickerFunc
}

// NewTrigger validates cfg. onFlicker may be nil.
func NewTrigger(cfg TriggerConfig, g *Goertzel, onFlicker FlickerFunc) (*Trigger, error) {
	if g == nil {
		return nil, ErrGoertzelRequired
	}
	var errs []error
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if cfg.Hysteresis < 0 {
		errs = append(errs, ErrInvalidHysteresis)
	}
	if cfg.AGCDecay < 0 || cfg.AGCDecay > 1 {
		errs = append(errs, ErrInvalidAGCDecay)
	}
	if cfg.AGCAttack < 0 || cfg.AGCAttack > 1 {
		errs = append(errs, ErrInvalidAGCAttack)
	}
	if cfg.AGCWarmupBlocks < 0 {
		errs = append(errs, ErrInvalidAGCWarmup)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Trigger{
		config:    cfg,
		goertzel:  g,
		buf:       make([]float32, 0, g.BlockSize()),
		peak:      1.0,
		onFlicker: onFlicker,
	}, nil
}

// Process consumes samples normalized to -1..1. Whole blocks are measured
// as they fill; a partial block waits for the next call.
func (t *Trigger) Process(samples []float32) {
	size := t.goertzel.BlockSize()
	for len(samples) > 0 {
		n := min(size-len(t.buf), len(samples))
		t.buf = append(t.buf, samples[:n]...)
		samples = samples[n:]
		t.samples += int64(n)

		if len(t.buf) == size {
			t.block(t.goertzel.magnitude(t.buf))
			t.buf = t.buf[:0]
		}
	}
}

func (t *Trigger) block(magnitude float64) {
	if t.warmup < t.config.AGCWarmupBlocks {
		t.warmup++
		if t.config.AGCEnabled && magnitude > minPeak && (t.warmup == 1 || magnitude > t.peak) {
			t.peak = magnitude
		}
		return
	}
	if t.config.AGCEnabled {
		magnitude = t.normalize(magnitude)
	}
	t.debounce(magnitude > t.config.Threshold)
}

func (t *Trigger) normalize(magnitude float64) float64 {
	if magnitude > t.peak {
		t.peak += t.config.AGCAttack * (magnitude - t.peak)
	} else {
		t.peak *= t.config.AGCDecay
	}
	t.peak = max(t.peak, minPeak)
	return min(magnitude/t.peak, 1.0)
}

func (t *Trigger) debounce(lit bool) {
	if lit == t.lit {
		t.pending = t.lit
		t.count = 0
		return
	}
	if lit == t.pending {
		t.count++
	} else {
		t.pending = lit
		t.count = 1
	}
	if t.count < t.config.Hysteresis {
		return
	}

	t.lit = t.pending
	t.count = 0
	if t.onFlicker != nil {
		t.onFlicker(cw.Flicker{On: t.lit, TimestampMs: t.NowMs()})
	}
}

// NowMs is the sample clock: StartMs plus the duration of every sample
// consumed so far.
func (t *Trigger) NowMs() int64 {
	return t.config.StartMs + t.samples*1000/int64(t.goertzel.SampleRate())
}
