// internal/audio/source.go
package audio

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/luminar/internal/cw"
	"github.com/ColonelBlimp/luminar/internal/dsp"
)

// flickerBuffer absorbs bursts while the receiver is busy. Edges arrive a
// few per second, so it only fills when the consumer has stalled.
const flickerBuffer = 256

// SourceConfig wires a capture device to an edge trigger.
type SourceConfig struct {
	Capture  Config
	Goertzel dsp.GoertzelConfig
	Trigger  dsp.TriggerConfig
}

// Source turns light seen through the sound card into flickers.
type Source struct {
	config   SourceConfig
	goertzel *dsp.Goertzel
	logger   *slog.Logger
	now      func() time.Time
	// clock is the trigger's sample clock in flicker milliseconds
	clock atomic.Int64

	mu       sync.Mutex
	flickers chan cw.Flicker
	closed   bool
	dropped  int
}

// NewSource validates cfg. Nothing is opened until Run.
func NewSource(cfg SourceConfig, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.Goertzel.SampleRate = float64(cfg.Capture.SampleRate)
	g, err := dsp.NewGoertzel(cfg.Goertzel)
	if err != nil {
		return nil, err
	}
	if _, err := dsp.NewTrigger(cfg.Trigger, g, nil); err != nil {
		return nil, err
	}
	return &Source{
		config:   cfg,
		goertzel: g,
		logger:   logger,
		now:      time.Now,
		flickers: make(chan cw.Flicker, flickerBuffer),
	}, nil
}

// Flickers is closed when Run returns.
func (s *Source) Flickers() <-chan cw.Flicker {
	return s.flickers
}

// Run captures until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	defer s.close()

	cfg := s.config.Trigger
	cfg.StartMs = s.now().UnixMilli()
	trigger, err := dsp.NewTrigger(cfg, s.goertzel, s.send)
	if err != nil {
		return err
	}
	s.clock.Store(trigger.NowMs())

	capture := New(s.config.Capture, s.sink(trigger))
	defer func() {
		if err := capture.Close(); err != nil {
			s.logger.Warn("closing audio capture failed", "error", err)
		}
	}()
	if err := capture.Init(); err != nil {
		return err
	}
	if err := capture.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("audio source started",
		"sample_rate", s.config.Capture.SampleRate,
		"tone_frequency", s.config.Goertzel.TargetFrequency)

	<-ctx.Done()
	return nil
}

// NowMs is the current time in the base of the flicker timestamps. It moves
// with the samples consumed, so a silence is measured the same way the
// edges around it were.
func (s *Source) NowMs() int64 {
	return s.clock.Load()
}

func (s *Source) sink(t *dsp.Trigger) SampleFunc {
	return func(samples []float32) {
		t.Process(samples)
		s.clock.Store(t.NowMs())
	}
}

func (s *Source) send(f cw.Flicker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.flickers <- f:
	default:
		s.dropped++
		s.logger.Warn("flicker dropped, receiver too slow", "dropped", s.dropped)
	}
}

func (s *Source) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.flickers)
	}
}
