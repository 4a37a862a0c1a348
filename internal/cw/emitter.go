// internal/cw/emitter.go
package cw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ColonelBlimp/luminar/internal/morse"
	"github.com/google/uuid"
)

var (
	// ErrBusy indicates a transmission is already running
	ErrBusy = errors.New("transmission already in progress")
	// ErrLightRequired indicates a light is required
	ErrLightRequired = errors.New("light is required")
)

// Light is the output the emitter keys. Drivers live in package light.
type Light interface {
	Set(on bool) error
}

// EncodedMessage holds one symbol sequence per input character. An empty
// sequence marks a word boundary.
type EncodedMessage []morse.Sequence

// Encode converts text character by character. Characters without a code
// become empty sequences, the same as spaces.
func Encode(trie *morse.Trie, text string) EncodedMessage {
	msg := make(EncodedMessage, 0, len(text))
	for _, r := range text {
		msg = append(msg, trie.CharToSymbols(r))
	}
	return msg
}

// Instruction is one step of the light output: switch to On and hold for
// HoldMs.
type Instruction struct {
	On     bool
	HoldMs int64
}

type unit uint8

const (
	unitDit unit = iota
	unitDah
	unitLetter
	unitWord
)

// step is an instruction whose hold is still expressed in timing units, so
// the duration can be resolved against whatever timing is current.
type step struct {
	on   bool
	unit unit
}

func (s step) hold(t Timing) int64 {
	switch s.unit {
	case unitDit:
		return t.Dit
	case unitDah:
		return t.Dah
	case unitLetter:
		return t.SpaceLetter
	default:
		return t.SpaceWord
	}
}

// steps lays out msg. Silences add up: every mark is followed by a dit of
// darkness, every character but the last adds SpaceLetter and every empty
// sequence adds SpaceWord on top. A letter gap is therefore dit plus
// SpaceLetter, and a space between words dit plus SpaceWord plus two
// SpaceLetter.
func steps(msg EncodedMessage) []step {
	var out []step
	for i, seq := range msg {
		if len(seq) == 0 {
			out = append(out, step{on: false, unit: unitWord})
		}
		for _, sym := range seq {
			if sym == morse.Dot {
				out = append(out, step{on: true, unit: unitDit})
			} else {
				out = append(out, step{on: true, unit: unitDah})
			}
			out = append(out, step{on: false, unit: unitDit})
		}
		if i < len(msg)-1 {
			out = append(out, step{on: false, unit: unitLetter})
		}
	}
	return out
}

// Plan resolves msg into timed instructions using t throughout.
func Plan(msg EncodedMessage, t Timing) []Instruction {
	st := steps(msg)
	plan := make([]Instruction, len(st))
	for i, s := range st {
		plan[i] = Instruction{On: s.on, HoldMs: s.hold(t)}
	}
	return plan
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// EmitterConfig wires an Emitter.
type EmitterConfig struct {
	Trie   *morse.Trie
	Light  Light
	Timing TimingFunc
	Logger *slog.Logger
	// Wait defaults to a timer honoring ctx
	Wait WaitFunc
}

// Emitter keys a Light with encoded text. One transmission runs at a time.
// Timing is re-read before every hold, so a rate change affects a message
// already in flight.
type Emitter struct {
	config EmitterConfig
	logger *slog.Logger

	mu      sync.Mutex
	busy    bool
	pending EncodedMessage
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewEmitter creates an idle emitter.
func NewEmitter(cfg EmitterConfig) (*Emitter, error) {
	if cfg.Trie == nil {
		return nil, ErrTrieRequired
	}
	if cfg.Light == nil {
		return nil, ErrLightRequired
	}
	if cfg.Timing == nil {
		return nil, ErrTimingRequired
	}
	if cfg.Wait == nil {
		cfg.Wait = sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Emitter{config: cfg, logger: cfg.Logger}, nil
}

// Transmit sends text and returns once it is done or ctx is cancelled.
// Cancellation is checked before every step and interrupts any hold; it
// returns ctx.Err(). Either way the light is left off and the pending
// message cleared.
func (e *Emitter) Transmit(ctx context.Context, text string) error {
	msg := Encode(e.config.Trie, text)
	if err := e.claim(msg); err != nil {
		return err
	}
	return e.run(ctx, msg)
}

// Start runs a transmission in the background. Use Cancel to stop it and
// Wait for its result.
func (e *Emitter) Start(ctx context.Context, text string) error {
	msg := Encode(e.config.Trie, text)

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.busy = true
	e.pending = msg
	e.cancel = cancel
	e.done = done
	e.lastErr = nil
	e.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		err := e.run(ctx, msg)
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
	}()
	return nil
}

// Cancel stops a transmission started with Start. It does not wait.
func (e *Emitter) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the transmission started with Start ends and returns
// its error. It returns nil when nothing was started.
func (e *Emitter) Wait() error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Busy reports whether a transmission is running.
func (e *Emitter) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Pending returns a copy of the message being sent, nil when idle.
func (e *Emitter) Pending() EncodedMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return nil
	}
	out := make(EncodedMessage, len(e.pending))
	for i, seq := range e.pending {
		out[i] = slices.Clone(seq)
	}
	return out
}

func (e *Emitter) claim(msg EncodedMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.busy = true
	e.pending = msg
	return nil
}

func (e *Emitter) run(ctx context.Context, msg EncodedMessage) (err error) {
	id := uuid.NewString()
	logger := e.logger.With("transmission", id)
	start := time.Now()
	logger.Info("transmission started", "characters", len(msg))

	var lit bool
	defer func() {
		if offErr := e.config.Light.Set(false); offErr != nil {
			logger.Warn("switching light off failed", "error", offErr)
			if err == nil {
				err = fmt.Errorf("switch light off: %w", offErr)
			}
		}
		e.mu.Lock()
		e.busy = false
		e.pending = nil
		e.mu.Unlock()

		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Info("transmission cancelled", "elapsed", time.Since(start))
		case err != nil:
			logger.Error("transmission failed", "error", err)
		default:
			logger.Info("transmission finished", "elapsed", time.Since(start))
		}
	}()

	for i, s := range steps(msg) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 || s.on != lit {
			if err := e.config.Light.Set(s.on); err != nil {
				return fmt.Errorf("set light: %w", err)
			}
			lit = s.on
		}
		hold := s.hold(e.config.Timing())
		if err := e.config.Wait(ctx, time.Duration(hold)*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
