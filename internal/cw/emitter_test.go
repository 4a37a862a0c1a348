package cw

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ColonelBlimp/luminar/internal/morse"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Light remembering every state it is given.
type recorder struct {
	mu     sync.Mutex
	states []bool
	// failOn makes Set return err when asked for that state
	failOn *bool
	err    error
}

func (r *recorder) Set(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil && *r.failOn == on {
		return r.err
	}
	r.states = append(r.states, on)
	return nil
}

func (r *recorder) States() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func (r *recorder) On() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states) > 0 && r.states[len(r.states)-1]
}

// waits records every requested hold without sleeping.
type waits struct {
	mu    sync.Mutex
	holds []time.Duration
}

func (w *waits) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.holds = append(w.holds, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waits) all() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.holds...)
}

func newTestEmitter(t *testing.T, l Light, wait WaitFunc) *Emitter {
	t.Helper()
	e, err := NewEmitter(EmitterConfig{
		Trie:   morse.NewTrie(true),
		Light:  l,
		Timing: FixedTiming(MustTiming(200)),
		Wait:   wait,
	})
	require.NoError(t, err)
	return e
}

func TestEncode(t *testing.T) {
	trie := morse.NewTrie(true)

	got := Encode(trie, "SoS")
	want := EncodedMessage{morse.MustParse("..."), morse.MustParse("---"), morse.MustParse("...")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode(SoS) mismatch (-want +got):\n%s", diff)
	}

	got = Encode(trie, "hi there")
	require.Len(t, got, 8)
	assert.Empty(t, got[2])
	assert.Equal(t, morse.MustParse("-"), got[3])
}

func TestEncode_ReturnsCopies(t *testing.T) {
	trie := morse.NewTrie(true)

	msg := Encode(trie, "e")
	msg[0][0] = morse.Dash
	assert.Equal(t, ".", trie.CharToSymbols('e').String())

	r, ok := trie.Find(morse.MustParse("."))
	require.True(t, ok)
	assert.Equal(t, 'e', r)
}

func TestPlan(t *testing.T) {
	tm := MustTiming(200)
	on := func(ms int64) Instruction { return Instruction{On: true, HoldMs: ms} }
	off := func(ms int64) Instruction { return Instruction{On: false, HoldMs: ms} }

	tests := []struct {
		name string
		text string
		want []Instruction
	}{
		{"single dot", "e", []Instruction{on(200), off(200)}},
		{"within letter", "a", []Instruction{on(200), off(200), on(600), off(200)}},
		{"two letters", "et", []Instruction{on(200), off(200), off(600), on(600), off(200)}},
		{"repeated letter", "ee", []Instruction{on(200), off(200), off(600), on(200), off(200)}},
		{"word", "e t", []Instruction{on(200), off(200), off(600), off(1400), off(600), on(600), off(200)}},
		{"unknown char is a space", "e#t", []Instruction{on(200), off(200), off(600), off(1400), off(600), on(600), off(200)}},
		{"leading space", " e", []Instruction{off(1400), off(600), on(200), off(200)}},
		{"trailing space", "e ", []Instruction{on(200), off(200), off(600), off(1400)}},
		{"only spaces", "  ", []Instruction{off(1400), off(600), off(1400)}},
		{"empty", "", nil},
	}
	trie := morse.NewTrie(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(Encode(trie, tt.text), tm)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Plan(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

// darkAfterFirstMark sums the OFF holds between the first and second marks.
func darkAfterFirstMark(plan []Instruction) int64 {
	var dark int64
	seen := false
	for _, in := range plan {
		if in.On {
			if seen {
				return dark
			}
			seen = true
			continue
		}
		if seen {
			dark += in.HoldMs
		}
	}
	return dark
}

func TestPlan_GapsAddUp(t *testing.T) {
	trie := morse.NewTrie(true)
	tm := MustTiming(200)

	assert.Equal(t, int64(200), darkAfterFirstMark(Plan(Encode(trie, "i"), tm)))
	assert.Equal(t, int64(800), darkAfterFirstMark(Plan(Encode(trie, "ee"), tm)))
	assert.Equal(t, int64(2800), darkAfterFirstMark(Plan(Encode(trie, "e e"), tm)))
	// each blank adds its own word and letter space
	assert.Equal(t, int64(4800), darkAfterFirstMark(Plan(Encode(trie, "e  e"), tm)))
}

func TestPlan_SOS(t *testing.T) {
	plan := Plan(Encode(morse.NewTrie(true), "sos"), MustTiming(100))
	require.Len(t, plan, 20)

	var onMs, total int64
	for _, in := range plan {
		total += in.HoldMs
		if in.On {
			onMs += in.HoldMs
		}
	}
	// 6 dits and 3 dahs lit, each followed by a dark dit, plus 2 letter spaces
	assert.Equal(t, int64(6*100+3*300), onMs)
	assert.Equal(t, int64(6*100+3*300+9*100+2*300), total)
	assert.False(t, plan[len(plan)-1].On)
}

func TestNewEmitter_Validation(t *testing.T) {
	tf := FixedTiming(MustTiming(200))
	_, err := NewEmitter(EmitterConfig{Light: &recorder{}, Timing: tf})
	assert.Equal(t, ErrTrieRequired, err)

	_, err = NewEmitter(EmitterConfig{Trie: morse.NewTrie(true), Timing: tf})
	assert.Equal(t, ErrLightRequired, err)

	_, err = NewEmitter(EmitterConfig{Trie: morse.NewTrie(true), Light: &recorder{}})
	assert.Equal(t, ErrTimingRequired, err)
}

func TestEmitter_Transmit(t *testing.T) {
	rec := &recorder{}
	w := &waits{}
	e := newTestEmitter(t, rec, w.wait)

	require.NoError(t, e.Transmit(context.Background(), "et"))

	// Consecutive dark steps do not switch the light again
	assert.Equal(t, []bool{true, false, true, false, false}, rec.States())
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		200 * time.Millisecond,
		600 * time.Millisecond,
		600 * time.Millisecond,
		200 * time.Millisecond,
	}, w.all())
	assert.False(t, rec.On())
	assert.False(t, e.Busy())
	assert.Nil(t, e.Pending())
}

func TestEmitter_TransmitCancelledBeforeStart(t *testing.T) {
	rec := &recorder{}
	e := newTestEmitter(t, rec, (&waits{}).wait)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Transmit(ctx, "sos")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []bool{false}, rec.States())
}

// blockingWait parks every hold until ctx is done and reports each entry.
func blockingWait(entered chan<- struct{}) WaitFunc {
	return func(ctx context.Context, d time.Duration) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestEmitter_Cancel(t *testing.T) {
	rec := &recorder{}
	entered := make(chan struct{}, 1)
	e := newTestEmitter(t, rec, blockingWait(entered))

	require.NoError(t, e.Start(context.Background(), "sos"))

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("emission never reached a hold")
	}
	assert.True(t, e.Busy())
	assert.True(t, rec.On())
	assert.Len(t, e.Pending(), 3)

	err := e.Transmit(context.Background(), "e")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, ErrBusy, e.Start(context.Background(), "e"))

	e.Cancel()
	assert.ErrorIs(t, e.Wait(), context.Canceled)

	assert.False(t, rec.On())
	assert.False(t, e.Busy())
	assert.Nil(t, e.Pending())

	// idle again, a new message goes through
	e.config.Wait = (&waits{}).wait
	require.NoError(t, e.Start(context.Background(), "e"))
	require.NoError(t, e.Wait())
	assert.False(t, rec.On())
}

func TestEmitter_CancelRightAfterStart(t *testing.T) {
	for range 50 {
		rec := &recorder{}
		e := newTestEmitter(t, rec, blockingWait(nil))

		require.NoError(t, e.Start(context.Background(), "sos"))
		e.Cancel()

		done := make(chan error, 1)
		go func() { done <- e.Wait() }()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("cancel did not reach the transmission just started")
		}
		assert.False(t, rec.On())
		assert.False(t, e.Busy())
	}
}

func TestEmitter_PendingIsACopy(t *testing.T) {
	entered := make(chan struct{}, 1)
	trie := morse.NewTrie(true)
	e, err := NewEmitter(EmitterConfig{
		Trie:   trie,
		Light:  &recorder{},
		Timing: FixedTiming(MustTiming(200)),
		Wait:   blockingWait(entered),
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background(), "e"))
	<-entered

	p := e.Pending()
	p[0][0] = morse.Dash
	assert.Equal(t, ".", e.Pending()[0].String())
	assert.Equal(t, ".", trie.CharToSymbols('e').String())

	e.Cancel()
	assert.ErrorIs(t, e.Wait(), context.Canceled)
}

func TestEmitter_WaitWithoutStart(t *testing.T) {
	e := newTestEmitter(t, &recorder{}, (&waits{}).wait)
	assert.NoError(t, e.Wait())
	e.Cancel()
}

func TestEmitter_LightFailure(t *testing.T) {
	on := true
	rec := &recorder{failOn: &on, err: errors.New("torch jammed")}
	e := newTestEmitter(t, rec, (&waits{}).wait)

	err := e.Transmit(context.Background(), "e")
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.err)
	assert.Contains(t, err.Error(), "set light")

	assert.Equal(t, []bool{false}, rec.States())
	assert.False(t, e.Busy())
}

func TestEmitter_ReadsTimingEveryStep(t *testing.T) {
	w := &waits{}
	calls := 0
	e, err := NewEmitter(EmitterConfig{
		Trie:  morse.NewTrie(true),
		Light: &recorder{},
		Timing: func() Timing {
			calls++
			if calls == 1 {
				return MustTiming(100)
			}
			return MustTiming(200)
		},
		Wait: w.wait,
	})
	require.NoError(t, err)

	require.NoError(t, e.Transmit(context.Background(), "ee"))

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		600 * time.Millisecond,
		200 * time.Millisecond,
		200 * time.Millisecond,
	}, w.all())
	assert.Equal(t, 5, calls)
}
