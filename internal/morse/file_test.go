package morse

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAlphabet(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alphabet.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAlphabetFile(t *testing.T) {
	path := writeAlphabet(t, `
[[code]]
char = "ä"
morse = ".-.-"

[[code]]
char = "ö"
morse = "---."
`)
	trie := NewTrie(true)

	n, err := LoadAlphabetFile(trie, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok := trie.Find(MustParse(".-.-"))
	require.True(t, ok)
	assert.Equal(t, 'ä', got)
	assert.Equal(t, "---.", trie.CharToSymbols('ö').String())

	// Built-ins untouched
	got, _ = trie.Find(MustParse(".-.-.-"))
	assert.Equal(t, '.', got)
}

func TestReadAlphabetFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"multi char", "[[code]]\nchar = \"ab\"\nmorse = \".-\"\n", ErrInvalidEntry},
		{"empty char", "[[code]]\nchar = \"\"\nmorse = \".-\"\n", ErrInvalidEntry},
		{"bad symbol", "[[code]]\nchar = \"x\"\nmorse = \".*\"\n", ErrInvalidSymbol},
		{"too short", "[[code]]\nchar = \"x\"\nmorse = \".\"\n", ErrInvalidEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAlphabetFile(writeAlphabet(t, tt.content))
			assert.True(t, errors.Is(err, tt.want), "error = %v, want %v", err, tt.want)
		})
	}
}

func TestReadAlphabetFile_Malformed(t *testing.T) {
	_, err := ReadAlphabetFile(writeAlphabet(t, "[[code]\nchar="))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode alphabet file")
}

func TestReadAlphabetFile_Missing(t *testing.T) {
	_, err := ReadAlphabetFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = ReadAlphabetFile("")
	assert.Equal(t, ErrEmptyAlphabetPath, err)
}
