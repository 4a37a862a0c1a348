// cmd/encode.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ColonelBlimp/luminar/internal/cw"
	"github.com/ColonelBlimp/luminar/internal/light"
	"github.com/ColonelBlimp/luminar/internal/recovery"
	"github.com/ColonelBlimp/luminar/internal/replay"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode TEXT...",
	Short: "Send text as Morse on a light",
	Long: `Encode keys a light with the Morse code for TEXT. The light is a console
trace by default or an LED/relay on a serial port control line. Use --plan
to print the on/off schedule without keying anything, and --record to save
it as a recording that decode can read back.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().String("driver", "", "light driver: console or serial (default from config)")
	encodeCmd.Flags().String("port", "", "serial port path (default from config)")
	encodeCmd.Flags().Bool("plan", false, "print the on/off plan and exit")
	encodeCmd.Flags().String("record", "", "write the plan as a recording to this file")
}

func runEncode(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	text := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	planOnly, _ := cmd.Flags().GetBool("plan")
	record, _ := cmd.Flags().GetString("record")

	plan := cw.Plan(cw.Encode(sess.trie, text), sess.timing.Load())
	if record != "" {
		if err := writeRecording(record, plan); err != nil {
			return err
		}
		sess.logger.Info("recording written", "file", record, "flickers", len(plan))
	}
	if planOnly {
		printPlan(out, plan)
		return nil
	}

	driver, err := openDriver(cmd, sess, out)
	if err != nil {
		return err
	}
	defer func() {
		if err := driver.Close(); err != nil {
			sess.logger.Warn("closing light failed", "error", err)
		}
	}()
	defer recovery.HandlePanicFunc(func() {
		_ = driver.Set(false)
		_ = driver.Close()
	})

	sess.watch()
	emitter, err := cw.NewEmitter(cw.EmitterConfig{
		Trie:   sess.trie,
		Light:  driver,
		Timing: sess.timing.Load,
		Logger: sess.logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = emitter.Transmit(ctx, text)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "transmission cancelled")
		return nil
	}
	return err
}

func openDriver(cmd *cobra.Command, sess *session, out io.Writer) (light.Driver, error) {
	opts := light.Options{
		Driver:   sess.settings.LightDriver,
		Output:   out,
		Port:     sess.settings.SerialPort,
		Line:     sess.settings.SerialLine,
		BaudRate: sess.settings.SerialBaudRate,
	}
	if d, _ := cmd.Flags().GetString("driver"); d != "" {
		opts.Driver = d
	}
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		opts.Port = p
	}
	return light.Open(opts)
}

func printPlan(w io.Writer, plan []cw.Instruction) {
	var total int64
	for _, in := range plan {
		state := "off"
		if in.On {
			state = "ON"
		}
		fmt.Fprintf(w, "%-3s %6d ms\n", state, in.HoldMs)
		total += in.HoldMs
	}
	fmt.Fprintf(w, "total %d ms\n", total)
}

func writeRecording(path string, plan []cw.Instruction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	if err := replay.Write(f, replay.FromPlan(plan, 0)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write recording: %w", err)
	}
	return f.Close()
}
