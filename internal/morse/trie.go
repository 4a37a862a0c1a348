// internal/morse/trie.go
package morse

import (
	"slices"
	"unicode"
)

// node is one position in the tree. Left follows a Dot, right follows a Dash.
// char is zero for prefixes that are not complete codes.
type node struct {
	symbol Symbol
	char   rune
	left   *node
	right  *node
}

func (n *node) child(s Symbol) *node {
	if s == Dot {
		return n.left
	}
	return n.right
}

// Trie maps dot/dash sequences to characters and back.
//
// It has two roots instead of an empty one: the Dot root holds 'e' and the
// Dash root holds 't', the only one-symbol codes. The first symbol of any
// sequence picks the root; the remaining symbols walk down from it.
//
// Insert must not run concurrently with lookups. Once built, a Trie is safe
// for any number of concurrent readers.
type Trie struct {
	dotRoot  *node
	dashRoot *node
	encode   map[rune]Sequence
}

// NewTrie creates a tree holding the two roots. With populate set, every
// entry of Alphabet is inserted; without it the tree starts empty below the
// roots. The character to code map always covers the full Alphabet.
func NewTrie(populate bool) *Trie {
	t := &Trie{
		dotRoot:  &node{symbol: Dot, char: DotRoot},
		dashRoot: &node{symbol: Dash, char: DashRoot},
		encode:   make(map[rune]Sequence, len(Alphabet)),
	}
	for _, c := range Alphabet {
		t.encode[c.Char] = MustParse(c.Morse)
	}
	if populate {
		for _, c := range Alphabet {
			t.Insert(c.Char, MustParse(c.Morse))
		}
	}
	return t
}

func (t *Trie) root(s Symbol) *node {
	if s == Dot {
		return t.dotRoot
	}
	return t.dashRoot
}

// Insert adds char at the position described by seq, creating intermediate
// nodes as needed. An existing terminal is overwritten, so inserting the same
// pair repeatedly is harmless. Sequences shorter than two symbols are ignored:
// the roots already cover them.
func (t *Trie) Insert(char rune, seq Sequence) {
	if len(seq) < 2 {
		return
	}

	n := t.root(seq[0])
	for _, s := range seq[1 : len(seq)-1] {
		next := n.child(s)
		if next == nil {
			next = &node{symbol: s}
			n.setChild(s, next)
		}
		n = next
	}

	last := seq[len(seq)-1]
	if leaf := n.child(last); leaf != nil {
		leaf.char = char
	} else {
		n.setChild(last, &node{symbol: last, char: char})
	}

	stored := make(Sequence, len(seq))
	copy(stored, seq)
	t.encode[char] = stored
}

func (n *node) setChild(s Symbol, c *node) {
	if s == Dot {
		n.left = c
	} else {
		n.right = c
	}
}

// Find returns the character for seq. The bool is false for an empty
// sequence, a path that leaves the tree, or a prefix that is not itself a
// complete code.
func (t *Trie) Find(seq Sequence) (rune, bool) {
	if len(seq) == 0 {
		return 0, false
	}

	n := t.root(seq[0])
	for _, s := range seq[1:] {
		n = n.child(s)
		if n == nil {
			return 0, false
		}
	}
	if n.char == 0 {
		return 0, false
	}
	return n.char, true
}

// CharToSymbols returns the code for char, folding letters to lowercase.
// Unknown characters, including space, yield an empty sequence which callers
// treat as a word boundary. The result is a copy the caller may modify.
func (t *Trie) CharToSymbols(char rune) Sequence {
	return slices.Clone(t.encode[unicode.ToLower(char)])
}

// Depth reports the length of the longest path from either root, counting
// the root itself.
func (t *Trie) Depth() int {
	return max(depth(t.dotRoot), depth(t.dashRoot))
}

func depth(n *node) int {
	if n == nil {
		return 0
	}
	return 1 + max(depth(n.left), depth(n.right))
}
