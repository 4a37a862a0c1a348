// cmd/timing.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var timingCmd = &cobra.Command{
	Use:   "timing",
	Short: "Print the timing thresholds for the configured rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := newSession(cmd)
		if err != nil {
			return err
		}
		t := sess.timing.Load()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "pulses per minute\t%d\n", t.PulsesPerMinute())
		fmt.Fprintf(w, "dit\t%d ms\n", t.Dit)
		fmt.Fprintf(w, "dah\t%d ms\n", t.Dah)
		fmt.Fprintf(w, "letter space\t%d ms\n", t.SpaceLetter)
		fmt.Fprintf(w, "word space\t%d ms\n", t.SpaceWord)
		fmt.Fprintf(w, "end of message\t%d ms\n", t.EndMessage)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "dit window\t%s\n", t.DitRange())
		fmt.Fprintf(w, "dah window\t%s\n", t.DashRange())
		fmt.Fprintf(w, "letter space window\t%s\n", t.SpaceLetterRange())
		fmt.Fprintf(w, "word space window\t%s\n", t.SpaceWordRange())

		s := sess.settings
		areaLo, areaHi := s.BlobAreaRange()
		circLo, circHi := s.CircularityRange()
		fmt.Fprintln(w)
		fmt.Fprintf(w, "blob area\t%.2f..%.2f px²\n", areaLo, areaHi)
		fmt.Fprintf(w, "circularity\t%.2f..%.2f\n", circLo, circHi)
		return w.Flush()
	},
}
