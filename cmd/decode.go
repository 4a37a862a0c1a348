// cmd/decode.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/luminar/internal/audio"
	"github.com/ColonelBlimp/luminar/internal/cw"
	"github.com/ColonelBlimp/luminar/internal/dsp"
	"github.com/ColonelBlimp/luminar/internal/recovery"
	"github.com/ColonelBlimp/luminar/internal/replay"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	sourceReplay = "replay"
	sourceAudio  = "audio"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode Morse from light edges",
	Long: `Decode reads light on/off edges and prints the decoded text as it
arrives. Edges come from a CSV recording (state,timestamp_ms) or from a
photodiode on the sound card input. Finished messages are listed newest
first on exit.`,
	Args: cobra.NoArgs,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringP("replay", "r", "-", "recording to decode, - for stdin")
	decodeCmd.Flags().StringP("source", "s", sourceReplay, "edge source: replay or audio")
	decodeCmd.Flags().Bool("morse", false, "print dots and dashes as they are decoded")
}

func runDecode(cmd *cobra.Command, _ []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	sess.watch()

	source, _ := cmd.Flags().GetString("source")
	path, _ := cmd.Flags().GetString("replay")
	showMorse, _ := cmd.Flags().GetBool("morse")
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rcfg := cw.ReceiverConfig{
		Trie:   sess.trie,
		Timing: sess.timing.Load,
		Logger: sess.logger,
	}

	g, ctx := errgroup.WithContext(ctx)
	var flickers <-chan cw.Flicker

	switch source {
	case sourceReplay:
		recorded, err := readRecording(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}
		sess.logger.Debug("recording loaded", "flickers", len(recorded))
		flickers = replay.Feed(recorded, ctx.Done())
	case sourceAudio:
		src, err := audio.NewSource(audioSourceConfig(sess), sess.logger)
		if err != nil {
			return err
		}
		rcfg.IdleFinish = sess.settings.IdleFinish
		rcfg.Clock = src.NowMs
		flickers = src.Flickers()
		g.Go(recovery.Guard(func() error { return src.Run(ctx) }))
	default:
		return fmt.Errorf("unknown source %q, want %s or %s", source, sourceReplay, sourceAudio)
	}

	receiver, err := cw.NewReceiver(rcfg)
	if err != nil {
		return err
	}
	receiver.SetCallback(func(u cw.Update) { printUpdate(out, u, receiver.Pending(), showMorse) })

	// Both sources close flickers when ctx is done, so the receiver drains
	// them and finishes the open message instead of stopping mid letter.
	g.Go(recovery.Guard(func() error {
		return receiver.Run(context.WithoutCancel(ctx), flickers)
	}))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Fprintln(out)
	for i, m := range receiver.Messages() {
		fmt.Fprintf(out, "%d: %s\n", i+1, m)
	}
	return nil
}

func readRecording(stdin io.Reader, path string) ([]cw.Flicker, error) {
	if path == "-" {
		return replay.Read(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	return replay.Read(f)
}

// printUpdate streams decoded text. Dropped letters show as '?'.
func printUpdate(w io.Writer, u cw.Update, pending string, showMorse bool) {
	switch {
	case u.Char != 0:
		fmt.Fprintf(w, "%c", u.Char)
	case u.Dropped != nil:
		fmt.Fprint(w, "?")
	}

	switch u.Event {
	case cw.EventWordSpace:
		fmt.Fprint(w, " ")
	case cw.EventEndMessage:
		fmt.Fprintln(w)
	case cw.EventDit, cw.EventDah:
		if showMorse {
			fmt.Fprintf(w, "[%s]", pending)
		}
	}
}

func audioSourceConfig(sess *session) audio.SourceConfig {
	s := sess.settings
	return audio.SourceConfig{
		Capture: audio.Config{
			DeviceIndex: s.DeviceIndex,
			SampleRate:  uint32(s.SampleRate),
			BufferSize:  uint32(s.BufferSize),
		},
		Goertzel: dsp.GoertzelConfig{
			TargetFrequency: s.ToneFrequency,
			BlockSize:       s.BlockSize,
		},
		Trigger: dsp.TriggerConfig{
			Threshold:       s.Threshold,
			Hysteresis:      s.Hysteresis,
			AGCEnabled:      s.AGCEnabled,
			AGCDecay:        s.AGCDecay,
			AGCAttack:       s.AGCAttack,
			AGCWarmupBlocks: s.AGCWarmupBlocks,
		},
	}
}
