// internal/morse/symbol.go
// Package morse holds the Morse alphabet and the dot/dash lookup tree.
package morse

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSymbol indicates a textual code contained something other than '.' or '-'
var ErrInvalidSymbol = errors.New("morse code must contain only '.' and '-'")

// Symbol is one of the two atomic Morse marks.
type Symbol uint8

const (
	// Dot is the short mark (dit)
	Dot Symbol = iota
	// Dash is the long mark (dah)
	Dash
)

func (s Symbol) String() string {
	switch s {
	case Dot:
		return "."
	case Dash:
		return "-"
	default:
		return "?"
	}
}

// Sequence is an ordered list of symbols making up one character.
type Sequence []Symbol

// String renders the sequence as dots and dashes, e.g. ".-" for 'a'.
func (s Sequence) String() string {
	var b strings.Builder
	b.Grow(len(s))
	for _, sym := range s {
		b.WriteString(sym.String())
	}
	return b.String()
}

// Parse converts a textual code such as "-.-." into a Sequence.
func Parse(code string) (Sequence, error) {
	seq := make(Sequence, 0, len(code))
	for i, r := range code {
		switch r {
		case '.':
			seq = append(seq, Dot)
		case '-':
			seq = append(seq, Dash)
		default:
			return nil, fmt.Errorf("%w: %q at offset %d", ErrInvalidSymbol, r, i)
		}
	}
	return seq, nil
}

// MustParse is Parse for static tables. It panics on malformed input.
func MustParse(code string) Sequence {
	seq, err := Parse(code)
	if err != nil {
		panic(err)
	}
	return seq
}
