// internal/morse/file.go
package morse

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

var (
	// ErrEmptyAlphabetPath indicates no alphabet file path was given
	ErrEmptyAlphabetPath = errors.New("alphabet file path is empty")
	// ErrInvalidEntry indicates an alphabet file entry is unusable
	ErrInvalidEntry = errors.New("invalid alphabet entry")
)

// AlphabetFile is the TOML layout of a user alphabet extension:
//
//	[[code]]
//	char = "ä"
//	morse = ".-.-"
type AlphabetFile struct {
	Codes []FileCode `toml:"code"`
}

// FileCode is a single [[code]] table.
type FileCode struct {
	Char  string `toml:"char"`
	Morse string `toml:"morse"`
}

// ReadAlphabetFile decodes and validates an alphabet extension file.
func ReadAlphabetFile(path string) ([]Code, error) {
	if path == "" {
		return nil, ErrEmptyAlphabetPath
	}
	var f AlphabetFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open alphabet file: %w", err)
		}
		return nil, fmt.Errorf("decode alphabet file: %w", err)
	}

	codes := make([]Code, 0, len(f.Codes))
	for i, c := range f.Codes {
		if utf8.RuneCountInString(c.Char) != 1 {
			return nil, fmt.Errorf("%w %d: char must be a single character, got %q", ErrInvalidEntry, i, c.Char)
		}
		seq, err := Parse(c.Morse)
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrInvalidEntry, i, err)
		}
		if len(seq) < 2 {
			return nil, fmt.Errorf("%w %d: code %q is shorter than two symbols", ErrInvalidEntry, i, c.Morse)
		}
		r, _ := utf8.DecodeRuneInString(c.Char)
		codes = append(codes, Code{Char: r, Morse: c.Morse})
	}
	return codes, nil
}

// LoadAlphabetFile inserts every entry of the file at path into t.
// Entries override built-in codes sharing the same sequence.
func LoadAlphabetFile(t *Trie, path string) (int, error) {
	codes, err := ReadAlphabetFile(path)
	if err != nil {
		return 0, err
	}
	for _, c := range codes {
		t.Insert(c.Char, MustParse(c.Morse))
	}
	return len(codes), nil
}
