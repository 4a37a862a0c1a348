// cmd/root.go
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ColonelBlimp/luminar/internal/config"
	"github.com/ColonelBlimp/luminar/internal/cw"
	"github.com/ColonelBlimp/luminar/internal/morse"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "luminar",
	Short: "Morse code over light pulses",
	Long: `Luminar decodes Morse code from the on/off edges of a light and keys a
light to send text as Morse.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("ppm", "p", cw.DefaultPulsesPerMinute, "dit pulses per minute")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	bindFlags()

	rootCmd.AddCommand(decodeCmd, encodeCmd, alphabetCmd, timingCmd)
}

func bindFlags() {
	_ = viper.BindPFlag("pulses_per_minute", rootCmd.PersistentFlags().Lookup("ppm"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session is what every command needs from the configuration.
type session struct {
	settings *config.Settings
	logger   *slog.Logger
	trie     *morse.Trie
	timing   *config.LiveTiming
}

func newSession(cmd *cobra.Command) (*session, error) {
	s, err := config.Get()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), s.Debug)

	t, err := s.Timing()
	if err != nil {
		return nil, err
	}

	trie := morse.NewTrie(true)
	if s.AlphabetFile != "" {
		n, err := morse.LoadAlphabetFile(trie, s.AlphabetFile)
		if err != nil {
			return nil, err
		}
		logger.Debug("alphabet extended", "file", s.AlphabetFile, "codes", n)
	}

	return &session{
		settings: s,
		logger:   logger,
		trie:     trie,
		timing:   config.NewLiveTiming(t),
	}, nil
}

// watchConfig is switched off by tests that run commands in process.
var watchConfig = true

// watch follows config file edits for long running commands.
func (s *session) watch() {
	if watchConfig && viper.ConfigFileUsed() != "" {
		config.Watch(s.timing, s.logger)
	}
}
