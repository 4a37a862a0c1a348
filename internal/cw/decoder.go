// internal/cw/decoder.go
package cw

import (
	"errors"
	"log/slog"
)

// ErrTimingRequired indicates a TimingFunc is required
var ErrTimingRequired = errors.New("timing source is required")

// Flicker is one observed transition of the light source.
type Flicker struct {
	On          bool
	TimestampMs int64
}

// Decoder classifies the interval between consecutive flickers.
//
// A falling edge (ON then OFF) measured a mark: DIT or DAH. A rising edge
// measured a gap: SPACE, LETTER_SPACE, WORD_SPACE or, past EndMessage,
// END_MESSAGE. Intervals matching no window are dropped without an event.
//
// The gap windows reuse DitRange for SPACE, so the same duration is a DIT or
// a SPACE depending only on the edge direction.
//
// Decoder is not safe for concurrent use. Feed it from one goroutine in
// timestamp order.
type Decoder struct {
	timing TimingFunc
	logger *slog.Logger

	// previous and current flicker only
	flickers       []Flicker
	lastDurationMs int64
}

// NewDecoder creates a decoder reading thresholds from timing on every
// observation.
func NewDecoder(timing TimingFunc, logger *slog.Logger) (*Decoder, error) {
	if timing == nil {
		return nil, ErrTimingRequired
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Decoder{
		timing:   timing,
		logger:   logger,
		flickers: make([]Flicker, 0, 2),
	}, nil
}

// Observe records f and returns the event it completes, or EventNone.
// A flicker repeating the last recorded state is discarded.
//
// A boundary event empties the history, f included, so no interval spans a
// letter, word or message boundary. The edge after a boundary only starts a
// new history.
func (d *Decoder) Observe(f Flicker) Event {
	n := len(d.flickers)
	if n > 0 && d.flickers[n-1].On == f.On {
		return EventNone
	}

	ev := EventNone
	if n > 0 {
		prev := d.flickers[n-1]
		delta := f.TimestampMs - prev.TimestampMs
		d.lastDurationMs = delta

		t := d.timing()
		if prev.On && !f.On {
			ev = classifyMark(delta, t)
		} else {
			ev = classifyGap(delta, t)
		}
		if ev == EventNone {
			d.logger.Debug("interval dropped", "duration_ms", delta, "mark", prev.On, "dit_ms", t.Dit)
		} else {
			d.logger.Debug("interval classified", "event", ev, "duration_ms", delta)
		}
	}

	if ev.IsBoundary() {
		d.flickers = d.flickers[:0]
		return ev
	}
	d.push(f)
	return ev
}

// Idle reports EventEndMessage when the light went OFF after a mark and has
// stayed OFF for at least EndMessage by nowMs. It clears the history so the
// message is closed once.
func (d *Decoder) Idle(nowMs int64) Event {
	if len(d.flickers) != 2 {
		return EventNone
	}
	prev, last := d.flickers[0], d.flickers[1]
	if last.On || !prev.On {
		return EventNone
	}
	if nowMs-last.TimestampMs < d.timing().EndMessage {
		return EventNone
	}
	d.lastDurationMs = nowMs - last.TimestampMs
	d.flickers = d.flickers[:0]
	return EventEndMessage
}

// Reset forgets all recorded flickers.
func (d *Decoder) Reset() {
	d.flickers = d.flickers[:0]
}

// LastDurationMs is the most recently measured interval.
func (d *Decoder) LastDurationMs() int64 {
	return d.lastDurationMs
}

func (d *Decoder) push(f Flicker) {
	if len(d.flickers) == 2 {
		d.flickers[0] = d.flickers[1]
		d.flickers = d.flickers[:1]
	}
	d.flickers = append(d.flickers, f)
}

// classifyMark checks the dit window before the dash window; a duration on
// their shared edge is a DIT.
func classifyMark(delta int64, t Timing) Event {
	switch {
	case t.DitRange().Contains(delta):
		return EventDit
	case t.DashRange().Contains(delta):
		return EventDah
	default:
		return EventNone
	}
}

func classifyGap(delta int64, t Timing) Event {
	switch {
	case t.DitRange().Contains(delta):
		return EventSpace
	case t.SpaceLetterRange().Contains(delta):
		return EventLetterSpace
	case t.SpaceWordRange().Contains(delta):
		return EventWordSpace
	case delta >= t.EndMessage:
		return EventEndMessage
	default:
		return EventNone
	}
}
