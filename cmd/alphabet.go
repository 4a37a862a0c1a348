// cmd/alphabet.go
package cmd

import (
	"fmt"
	"slices"

	"github.com/ColonelBlimp/luminar/internal/morse"
	"github.com/spf13/cobra"
)

var alphabetCmd = &cobra.Command{
	Use:   "alphabet",
	Short: "Print the Morse table",
	Long:  `Alphabet prints every character luminar can send and receive with its code, including entries from alphabet_file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := newSession(cmd)
		if err != nil {
			return err
		}

		chars := make([]rune, 0, len(morse.Alphabet))
		for _, c := range morse.Alphabet {
			chars = append(chars, c.Char)
		}
		if sess.settings.AlphabetFile != "" {
			extra, err := morse.ReadAlphabetFile(sess.settings.AlphabetFile)
			if err != nil {
				return err
			}
			for _, c := range extra {
				if !slices.Contains(chars, c.Char) {
					chars = append(chars, c.Char)
				}
			}
		}

		out := cmd.OutOrStdout()
		for _, r := range chars {
			fmt.Fprintf(out, "%c  %s\n", r, sess.trie.CharToSymbols(r))
		}
		fmt.Fprintf(out, "\n%d characters, trie depth %d\n", len(chars), sess.trie.Depth())
		return nil
	},
}
