// internal/cw/receiver.go
package cw

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ColonelBlimp/luminar/internal/morse"
)

// DefaultIdleInterval is how often Run checks for a message left open by silence
const DefaultIdleInterval = 100 * time.Millisecond

// ErrNotBoundary indicates Finish was called with a non-boundary event
var ErrNotBoundary = errors.New("event is not a letter, word or message boundary")

// UpdateCallback is called for every event that reaches the accumulator.
// It runs on the receiving goroutine and must not block.
type UpdateCallback func(u Update)

// ReceiverConfig wires a Receiver.
type ReceiverConfig struct {
	Trie   *morse.Trie
	Timing TimingFunc
	Logger *slog.Logger
	// IdleFinish closes a message after EndMessage of silence without
	// waiting for the next edge
	IdleFinish bool
	// IdleInterval is the idle check period (default DefaultIdleInterval)
	IdleInterval time.Duration
	// Clock returns the current time in the flicker timestamp base
	// (default wall clock Unix milliseconds)
	Clock func() int64
}

// Receiver chains a Decoder into an Accumulator. All methods must be called
// from one goroutine; Run provides that goroutine for channel-fed input.
type Receiver struct {
	decoder  *Decoder
	acc      *Accumulator
	logger   *slog.Logger
	config   ReceiverConfig
	callback UpdateCallback
}

// NewReceiver builds the decode pipeline.
func NewReceiver(cfg ReceiverConfig) (*Receiver, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = func() int64 { return time.Now().UnixMilli() }
	}

	decoder, err := NewDecoder(cfg.Timing, cfg.Logger)
	if err != nil {
		return nil, err
	}
	acc, err := NewAccumulator(cfg.Trie)
	if err != nil {
		return nil, err
	}

	return &Receiver{
		decoder: decoder,
		acc:     acc,
		logger:  cfg.Logger,
		config:  cfg,
	}, nil
}

// SetCallback sets the callback for updates. Set it before Run.
func (r *Receiver) SetCallback(cb UpdateCallback) {
	r.callback = cb
}

// Observe feeds one flicker through the pipeline.
func (r *Receiver) Observe(f Flicker) Update {
	ev := r.decoder.Observe(f)
	if ev == EventNone {
		return Update{}
	}
	return r.apply(ev)
}

// Finish closes the open letter, word or message by hand. Flicker history is
// discarded so the next mark starts fresh.
func (r *Receiver) Finish(ev Event) (Update, error) {
	if !ev.IsBoundary() {
		return Update{}, ErrNotBoundary
	}
	r.decoder.Reset()
	return r.apply(ev), nil
}

// Flush resolves the open letter and ends the message. Unlike an
// END_MESSAGE event, which discards the open letter, the letter is kept.
func (r *Receiver) Flush() Update {
	r.decoder.Reset()
	return r.flush()
}

// Idle flushes a message left open by silence as of nowMs.
func (r *Receiver) Idle(nowMs int64) (Update, bool) {
	if r.decoder.Idle(nowMs) == EventNone {
		return Update{}, false
	}
	return r.flush(), true
}

func (r *Receiver) flush() Update {
	letter := r.acc.Apply(EventLetterSpace)
	u := r.acc.Apply(EventEndMessage)
	u.Char, u.Dropped = letter.Char, letter.Dropped
	return r.report(u)
}

func (r *Receiver) apply(ev Event) Update {
	return r.report(r.acc.Apply(ev))
}

func (r *Receiver) report(u Update) Update {
	u.DurationMs = r.decoder.LastDurationMs()

	switch {
	case u.Char != 0:
		r.logger.Debug("letter resolved", "char", string(u.Char))
	case u.Dropped != nil:
		r.logger.Debug("letter dropped", "code", u.Dropped.String())
	}

	if r.callback != nil {
		r.callback(u)
	}
	return u
}

// Run consumes flickers until in is closed or ctx is done. When in closes
// an open letter is flushed so it is not lost.
func (r *Receiver) Run(ctx context.Context, in <-chan Flicker) error {
	var tick <-chan time.Time
	if r.config.IdleFinish {
		ticker := time.NewTicker(r.config.IdleInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				if r.acc.Pending() != "" {
					r.Flush()
				}
				return nil
			}
			r.Observe(f)
		case <-tick:
			r.Idle(r.config.Clock())
		}
	}
}

// Pending renders the open letter as dots and dashes.
func (r *Receiver) Pending() string {
	return r.acc.Pending()
}

// Text returns the accumulated text.
func (r *Receiver) Text() string {
	return r.acc.Text()
}

// Messages returns non-blank messages, newest first.
func (r *Receiver) Messages() []string {
	return r.acc.Messages()
}

// LastDurationMs is the most recently measured interval.
func (r *Receiver) LastDurationMs() int64 {
	return r.decoder.LastDurationMs()
}

// Clear drops accumulated text and flicker history.
func (r *Receiver) Clear() {
	r.acc.Clear()
	r.decoder.Reset()
}
