// internal/replay/replay.go
// Package replay reads and writes recorded flicker streams.
//
// A recording is CSV with one edge per row: state,timestamp_ms. State is
// on/off (or 1/0, true/false). Lines starting with # are comments and a
// leading "state,timestamp_ms" header is skipped.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ColonelBlimp/luminar/internal/cw"
)

var (
	// ErrInvalidState indicates a state column that is not on or off
	ErrInvalidState = errors.New("invalid light state")
	// ErrInvalidTimestamp indicates a timestamp that is not an integer
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrOutOfOrder indicates a timestamp earlier than the previous row
	ErrOutOfOrder = errors.New("timestamps out of order")
)

// Header is written as the first row of every recording.
var Header = []string{"state", "timestamp_ms"}

// Read parses a recording.
func Read(r io.Reader) ([]cw.Flicker, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var out []cw.Flicker
	last := int64(math.MinInt64)
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read recording: %w", err)
		}
		if row == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), Header[0]) {
			continue
		}

		on, err := parseState(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w: %q", row, ErrInvalidTimestamp, rec[1])
		}
		if ts < last {
			return nil, fmt.Errorf("row %d: %w: %d after %d", row, ErrOutOfOrder, ts, last)
		}
		last = ts
		out = append(out, cw.Flicker{On: on, TimestampMs: ts})
	}
}

func parseState(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// Write emits flickers as a recording, header first.
func Write(w io.Writer, flickers []cw.Flicker) error {
	out := csv.NewWriter(w)
	if err := out.Write(Header); err != nil {
		return err
	}
	for _, f := range flickers {
		state := "off"
		if f.On {
			state = "on"
		}
		if err := out.Write([]string{state, strconv.FormatInt(f.TimestampMs, 10)}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// FromPlan turns an emission plan into the edges an observer would see,
// starting at startMs. Consecutive steps in the same state are one edge.
func FromPlan(plan []cw.Instruction, startMs int64) []cw.Flicker {
	out := make([]cw.Flicker, 0, len(plan))
	ts := startMs
	for _, in := range plan {
		if n := len(out); n == 0 || out[n-1].On != in.On {
			out = append(out, cw.Flicker{On: in.On, TimestampMs: ts})
		}
		ts += in.HoldMs
	}
	return out
}

// Feed sends flickers on a new channel and closes it when done or when
// done is closed first.
func Feed(flickers []cw.Flicker, done <-chan struct{}) <-chan cw.Flicker {
	ch := make(chan cw.Flicker)
	go func() {
		defer close(ch)
		for _, f := range flickers {
			select {
			case ch <- f:
			case <-done:
				return
			}
		}
	}()
	return ch
}
