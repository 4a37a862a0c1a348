// internal/cw/accumulator.go
package cw

import (
	"errors"
	"slices"
	"strings"

	"github.com/ColonelBlimp/luminar/internal/morse"
)

// ErrTrieRequired indicates a Morse tree is required
var ErrTrieRequired = errors.New("morse trie is required")

// Update describes the effect of one event on the accumulated text.
type Update struct {
	Event Event
	// Char is the letter resolved by this event, zero if none
	Char rune
	// Dropped is a closed letter that produced no text: it matched no code,
	// or a word or message boundary discarded it
	Dropped morse.Sequence
	// DurationMs is the interval that produced Event, when known
	DurationMs int64
}

// Accumulator folds decoder events into text. DIT and DAH grow the open
// letter and LETTER_SPACE resolves it through the tree. Letters that resolve
// to nothing are dropped. WORD_SPACE appends a space and END_MESSAGE a
// newline; both discard the open letter without resolving it.
//
// Accumulator is not safe for concurrent use.
type Accumulator struct {
	trie   *morse.Trie
	letter morse.Sequence
	text   strings.Builder
}

// NewAccumulator creates an empty accumulator resolving letters with trie.
func NewAccumulator(trie *morse.Trie) (*Accumulator, error) {
	if trie == nil {
		return nil, ErrTrieRequired
	}
	return &Accumulator{
		trie:   trie,
		letter: make(morse.Sequence, 0, 8),
	}, nil
}

// Apply folds ev into the state. The open letter is empty after any
// boundary event.
func (a *Accumulator) Apply(ev Event) Update {
	u := Update{Event: ev}

	switch ev {
	case EventDit:
		a.letter = append(a.letter, morse.Dot)
	case EventDah:
		a.letter = append(a.letter, morse.Dash)
	case EventLetterSpace:
		u.Char, u.Dropped = a.closeLetter()
	case EventWordSpace:
		u.Dropped = a.discardLetter()
		a.text.WriteByte(' ')
	case EventEndMessage:
		u.Dropped = a.discardLetter()
		a.text.WriteByte('\n')
	}

	return u
}

func (a *Accumulator) closeLetter() (rune, morse.Sequence) {
	if len(a.letter) == 0 {
		return 0, nil
	}
	defer func() { a.letter = a.letter[:0] }()

	if r, ok := a.trie.Find(a.letter); ok {
		a.text.WriteRune(r)
		return r, nil
	}
	return 0, slices.Clone(a.letter)
}

func (a *Accumulator) discardLetter() morse.Sequence {
	if len(a.letter) == 0 {
		return nil
	}
	dropped := slices.Clone(a.letter)
	a.letter = a.letter[:0]
	return dropped
}

// Pending renders the open letter as dots and dashes.
func (a *Accumulator) Pending() string {
	return a.letter.String()
}

// Text returns everything accumulated so far, messages separated by newlines.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Messages splits the text into non-blank messages, newest first.
func (a *Accumulator) Messages() []string {
	lines := strings.Split(a.text.String(), "\n")
	messages := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			messages = append(messages, line)
		}
	}
	slices.Reverse(messages)
	return messages
}

// Clear drops the text and the open letter.
func (a *Accumulator) Clear() {
	a.text.Reset()
	a.letter = a.letter[:0]
}
