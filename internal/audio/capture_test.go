package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/ColonelBlimp/luminar/internal/cw"
	"github.com/ColonelBlimp/luminar/internal/dsp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DeviceIndex != -1 {
		t.Errorf("DeviceIndex = %d, want -1", cfg.DeviceIndex)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.BufferSize != 512 {
		t.Errorf("BufferSize = %d, want 512", cfg.BufferSize)
	}
}

func TestCapture_NotInitialized(t *testing.T) {
	c := New(DefaultConfig(), nil)

	if c.IsRunning() {
		t.Error("new capture should not be running")
	}
	if _, err := c.ListDevices(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListDevices() error = %v, want ErrNotInitialized", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start() error = %v, want ErrNotInitialized", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestCapture_CloseTwice(t *testing.T) {
	c := New(DefaultConfig(), nil)
	if err := c.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := c.Init(); !errors.Is(err, ErrClosed) {
		t.Errorf("Init() after Close = %v, want ErrClosed", err)
	}
}

func encode(values ...float32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

func TestBytesToFloat32(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want []float32
	}{
		{"empty", nil, []float32{}},
		{"single", encode(0.5), []float32{0.5}},
		{"several", encode(-1, 0, 1, 0.25), []float32{-1, 0, 1, 0.25}},
		{"partial sample ignored", append(encode(0.75), 0x01, 0x02), []float32{0.75}},
		{"too short", []byte{0x01, 0x02, 0x03}, []float32{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := bytesToFloat32(tc.data)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("sample %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestBytesToFloat32_SpecialValues(t *testing.T) {
	got := bytesToFloat32(encode(float32(math.Inf(1)), float32(math.NaN())))
	if !math.IsInf(float64(got[0]), 1) {
		t.Errorf("expected +Inf, got %v", got[0])
	}
	if !math.IsNaN(float64(got[1])) {
		t.Errorf("expected NaN, got %v", got[1])
	}
}

func testSourceConfig() SourceConfig {
	return SourceConfig{
		Capture:  DefaultConfig(),
		Goertzel: dsp.GoertzelConfig{TargetFrequency: 600, BlockSize: 480},
		Trigger:  dsp.TriggerConfig{Threshold: 0.5, Hysteresis: 2},
	}
}

func TestNewSource_Validation(t *testing.T) {
	cfg := testSourceConfig()
	cfg.Goertzel.TargetFrequency = 30000
	if _, err := NewSource(cfg, nil); !errors.Is(err, dsp.ErrInvalidFrequency) {
		t.Errorf("expected ErrInvalidFrequency, got %v", err)
	}

	cfg = testSourceConfig()
	cfg.Trigger.Threshold = 2
	if _, err := NewSource(cfg, nil); !errors.Is(err, dsp.ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}

	cfg = testSourceConfig()
	cfg.Capture.SampleRate = 0
	if _, err := NewSource(cfg, nil); !errors.Is(err, dsp.ErrInvalidSampleRate) {
		t.Errorf("expected ErrInvalidSampleRate, got %v", err)
	}
}

func TestSource_SendDropsWhenFullAndStopsWhenClosed(t *testing.T) {
	src, err := NewSource(testSourceConfig(), nil)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	for i := range flickerBuffer + 5 {
		src.send(cw.Flicker{On: i%2 == 0, TimestampMs: int64(i)})
	}
	if src.dropped != 5 {
		t.Errorf("dropped = %d, want 5", src.dropped)
	}

	src.close()
	src.close()
	src.send(cw.Flicker{On: true})

	n := 0
	for range src.Flickers() {
		n++
	}
	if n != flickerBuffer {
		t.Errorf("received %d flickers, want %d", n, flickerBuffer)
	}
}

func TestSource_ClockFollowsSamples(t *testing.T) {
	src, err := NewSource(testSourceConfig(), nil)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	cfg := src.config.Trigger
	cfg.StartMs = 10000
	trigger, err := dsp.NewTrigger(cfg, src.goertzel, src.send)
	if err != nil {
		t.Fatalf("NewTrigger() error = %v", err)
	}
	sink := src.sink(trigger)

	if got := src.NowMs(); got != 0 {
		t.Errorf("NowMs() before any samples = %d, want 0", got)
	}

	// Half a second of silence at 48 kHz, delivered late or not, is 500 ms
	sink(make([]float32, 24000))
	if got := src.NowMs(); got != 10500 {
		t.Errorf("NowMs() = %d, want 10500", got)
	}
	sink(make([]float32, 4800))
	if got := src.NowMs(); got != 10600 {
		t.Errorf("NowMs() = %d, want 10600", got)
	}
}
