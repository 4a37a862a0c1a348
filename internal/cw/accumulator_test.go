package cw

import (
	"testing"

	"github.com/ColonelBlimp/luminar/internal/morse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccumulator(t *testing.T) *Accumulator {
	t.Helper()
	a, err := NewAccumulator(morse.NewTrie(true))
	require.NoError(t, err)
	return a
}

func applyAll(a *Accumulator, events ...Event) {
	for _, ev := range events {
		a.Apply(ev)
	}
}

func TestNewAccumulator_RequiresTrie(t *testing.T) {
	_, err := NewAccumulator(nil)
	assert.Equal(t, ErrTrieRequired, err)
}

func TestAccumulator_ResolvesLetter(t *testing.T) {
	a := newTestAccumulator(t)

	applyAll(a, EventDit, EventSpace, EventDah)
	assert.Equal(t, ".-", a.Pending())
	assert.Empty(t, a.Text())

	u := a.Apply(EventLetterSpace)
	assert.Equal(t, 'a', u.Char)
	assert.Nil(t, u.Dropped)
	assert.Equal(t, "a", a.Text())
	assert.Empty(t, a.Pending())
}

func TestAccumulator_DropsUnknownLetter(t *testing.T) {
	a := newTestAccumulator(t)

	applyAll(a, EventDit, EventDah, EventDit, EventDah)
	u := a.Apply(EventLetterSpace)

	assert.Zero(t, u.Char)
	assert.Equal(t, ".-.-", u.Dropped.String())
	assert.Empty(t, a.Text())
	assert.Empty(t, a.Pending())
}

func TestAccumulator_LetterSpaceWithoutLetter(t *testing.T) {
	a := newTestAccumulator(t)
	u := a.Apply(EventLetterSpace)
	assert.Zero(t, u.Char)
	assert.Nil(t, u.Dropped)
	assert.Empty(t, a.Text())
}

func TestAccumulator_BoundariesEmptyTheLetter(t *testing.T) {
	for _, boundary := range []Event{EventLetterSpace, EventWordSpace, EventEndMessage} {
		t.Run(boundary.String(), func(t *testing.T) {
			a := newTestAccumulator(t)
			applyAll(a, EventDah, EventDah)
			a.Apply(boundary)
			assert.Empty(t, a.letter)

			a.Apply(EventDit)
			assert.Equal(t, ".", a.Pending())
		})
	}
}

func TestAccumulator_WordSpace(t *testing.T) {
	a := newTestAccumulator(t)

	applyAll(a, EventDit, EventDit, EventDit, EventDit, EventLetterSpace) // h
	applyAll(a, EventDit, EventDit)
	u := a.Apply(EventWordSpace)

	// The open letter is discarded, not resolved
	assert.Zero(t, u.Char)
	assert.Equal(t, "..", u.Dropped.String())
	assert.Equal(t, "h ", a.Text())
	assert.Empty(t, a.Pending())

	// No pending letter needed
	u = a.Apply(EventWordSpace)
	assert.Nil(t, u.Dropped)
	assert.Equal(t, "h  ", a.Text())
}

func TestAccumulator_WordSpaceOnly(t *testing.T) {
	a := newTestAccumulator(t)
	applyAll(a, EventDit, EventDit, EventWordSpace)
	assert.Equal(t, " ", a.Text())
}

func TestAccumulator_EndMessage(t *testing.T) {
	a := newTestAccumulator(t)

	applyAll(a, EventDah, EventLetterSpace, EventDit)
	u := a.Apply(EventEndMessage)
	assert.Zero(t, u.Char)
	assert.Equal(t, ".", u.Dropped.String())
	assert.Equal(t, "t\n", a.Text())

	applyAll(a, EventDah)
	a.Apply(EventEndMessage)
	assert.Equal(t, "t\n\n", a.Text())
}

func TestAccumulator_Messages(t *testing.T) {
	a := newTestAccumulator(t)

	assert.Empty(t, a.Messages())

	applyAll(a, EventDit, EventDit, EventDit, EventLetterSpace, EventEndMessage) // s
	applyAll(a, EventDah, EventEndMessage, EventWordSpace, EventEndMessage)       // t discarded
	applyAll(a, EventDah, EventDah, EventDah, EventLetterSpace)                   // o
	applyAll(a, EventDah, EventDit, EventDah)                                    // k, still open

	assert.Equal(t, []string{"o", "s"}, a.Messages())
}

func TestAccumulator_Clear(t *testing.T) {
	a := newTestAccumulator(t)
	applyAll(a, EventDit, EventLetterSpace, EventDah)
	a.Clear()
	assert.Empty(t, a.Text())
	assert.Empty(t, a.Pending())
}

func TestAccumulator_IgnoresInformationalEvents(t *testing.T) {
	a := newTestAccumulator(t)
	for _, ev := range []Event{EventNone, EventSpace, Event(99)} {
		u := a.Apply(ev)
		assert.Equal(t, ev, u.Event)
	}
	assert.Empty(t, a.Text())
	assert.Empty(t, a.Pending())
}
