// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ColonelBlimp/luminar/internal/cw"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	AppName       = "luminar"
	ConfigType    = "yaml"
	DefaultConfig = `# Luminar Configuration

# Timing
pulses_per_minute: 60   # Dit pulses per minute; dit length is 60000 / ppm ms
idle_finish: true       # End the open message after a long enough dark period

# Alphabet
alphabet_file: ""       # Optional TOML file with extra [[code]] entries

# Light detection (camera side)
circularity_min: 0.0    # Minimum blob circularity (0.0-1.0)
circularity_max: 1.0    # Maximum blob circularity (0.0-1.0)
blob_radius_min: 0      # Minimum blob radius in pixels
blob_radius_max: 200    # Maximum blob radius in pixels

# Light output
light_driver: "console" # console or serial
serial_port: ""         # e.g. /dev/ttyUSB0
serial_line: "rts"      # Control line keying the light: rts or dtr
serial_baud_rate: 9600

# Audio source (photodiode on the line input)
device_index: -1        # -1 for default device
sample_rate: 48000      # Audio sample rate in Hz
buffer_size: 512        # Frames per capture callback
tone_frequency: 600     # Modulation frequency of the light in Hz
block_size: 480         # Goertzel block size (480 at 48 kHz is 10 ms)
threshold: 0.4          # Detection threshold (0.0-1.0)
hysteresis: 3           # Consecutive blocks required to confirm an edge
agc_enabled: true       # Normalize magnitude by a tracked peak
agc_decay: 0.995        # Peak decay per block
agc_attack: 0.1         # How fast the peak follows a brighter light (0.0-1.0)
agc_warmup_blocks: 10   # Blocks used to calibrate before edges fire

# Output
debug: false            # Enable debug logging
`
)

// minRange floors the lower bound of detection ranges so a zero setting
// never matches degenerate blobs.
const minRange = 0.01

// Settings holds all application configuration
type Settings struct {
	// Timing
	PulsesPerMinute int  `mapstructure:"pulses_per_minute"`
	IdleFinish      bool `mapstructure:"idle_finish"`

	// Alphabet
	AlphabetFile string `mapstructure:"alphabet_file"`

	// Light detection
	CircularityMin float64 `mapstructure:"circularity_min"`
	CircularityMax float64 `mapstructure:"circularity_max"`
	BlobRadiusMin  float64 `mapstructure:"blob_radius_min"`
	BlobRadiusMax  float64 `mapstructure:"blob_radius_max"`

	// Light output
	LightDriver    string `mapstructure:"light_driver"`
	SerialPort     string `mapstructure:"serial_port"`
	SerialLine     string `mapstructure:"serial_line"`
	SerialBaudRate int    `mapstructure:"serial_baud_rate"`

	// Audio source
	DeviceIndex     int     `mapstructure:"device_index"`
	SampleRate      float64 `mapstructure:"sample_rate"`
	BufferSize      int     `mapstructure:"buffer_size"`
	ToneFrequency   float64 `mapstructure:"tone_frequency"`
	BlockSize       int     `mapstructure:"block_size"`
	Threshold       float64 `mapstructure:"threshold"`
	Hysteresis      int     `mapstructure:"hysteresis"`
	AGCEnabled      bool    `mapstructure:"agc_enabled"`
	AGCDecay        float64 `mapstructure:"agc_decay"`
	AGCAttack       float64 `mapstructure:"agc_attack"`
	AGCWarmupBlocks int     `mapstructure:"agc_warmup_blocks"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/luminar/
func Init() error {
	viper.SetDefault("pulses_per_minute", cw.DefaultPulsesPerMinute)
	viper.SetDefault("idle_finish", true)
	viper.SetDefault("alphabet_file", "")
	viper.SetDefault("circularity_min", 0.0)
	viper.SetDefault("circularity_max", 1.0)
	viper.SetDefault("blob_radius_min", 0.0)
	viper.SetDefault("blob_radius_max", 200.0)
	viper.SetDefault("light_driver", "console")
	viper.SetDefault("serial_port", "")
	viper.SetDefault("serial_line", "rts")
	viper.SetDefault("serial_baud_rate", 9600)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("block_size", 480)
	viper.SetDefault("threshold", 0.4)
	viper.SetDefault("hysteresis", 3)
	viper.SetDefault("agc_enabled", true)
	viper.SetDefault("agc_decay", 0.995)
	viper.SetDefault("agc_attack", 0.1)
	viper.SetDefault("agc_warmup_blocks", 10)
	viper.SetDefault("debug", false)

	viper.SetConfigType(ConfigType)
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// .config.yaml wins over config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Timing
	if s.PulsesPerMinute < 10 || s.PulsesPerMinute > 600 {
		errs = append(errs, fmt.Errorf("pulses_per_minute must be between 10 and 600, got %d", s.PulsesPerMinute))
	}

	// Light detection
	if s.CircularityMin < 0 || s.CircularityMin > 1 {
		errs = append(errs, fmt.Errorf("circularity_min must be between 0.0 and 1.0, got %v", s.CircularityMin))
	}
	if s.CircularityMax < 0 || s.CircularityMax > 1 {
		errs = append(errs, fmt.Errorf("circularity_max must be between 0.0 and 1.0, got %v", s.CircularityMax))
	}
	if s.CircularityMin > s.CircularityMax {
		errs = append(errs, fmt.Errorf("circularity_min (%v) must not exceed circularity_max (%v)", s.CircularityMin, s.CircularityMax))
	}
	if s.BlobRadiusMin < 0 || s.BlobRadiusMax < 0 {
		errs = append(errs, fmt.Errorf("blob radii must be non-negative, got %v..%v", s.BlobRadiusMin, s.BlobRadiusMax))
	}
	if s.BlobRadiusMin > s.BlobRadiusMax {
		errs = append(errs, fmt.Errorf("blob_radius_min (%v) must not exceed blob_radius_max (%v)", s.BlobRadiusMin, s.BlobRadiusMax))
	}

	// Light output
	switch strings.ToLower(s.LightDriver) {
	case "console", "serial":
	default:
		errs = append(errs, fmt.Errorf("light_driver must be console or serial, got %q", s.LightDriver))
	}
	switch strings.ToLower(s.SerialLine) {
	case "rts", "dtr":
	default:
		errs = append(errs, fmt.Errorf("serial_line must be rts or dtr, got %q", s.SerialLine))
	}
	if s.SerialBaudRate <= 0 {
		errs = append(errs, fmt.Errorf("serial_baud_rate must be positive, got %d", s.SerialBaudRate))
	}

	// Audio source
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}
	if s.BlockSize < 32 || s.BlockSize > 4096 {
		errs = append(errs, fmt.Errorf("block_size must be between 32 and 4096, got %d", s.BlockSize))
	}
	if s.Threshold < 0.0 || s.Threshold > 1.0 {
		errs = append(errs, fmt.Errorf("threshold must be between 0.0 and 1.0, got %v", s.Threshold))
	}
	if s.Hysteresis < 1 || s.Hysteresis > 50 {
		errs = append(errs, fmt.Errorf("hysteresis must be between 1 and 50, got %d", s.Hysteresis))
	}
	if s.AGCDecay < 0.9 || s.AGCDecay > 0.99999 {
		errs = append(errs, fmt.Errorf("agc_decay must be between 0.9 and 0.99999, got %v", s.AGCDecay))
	}
	if s.AGCAttack < 0.0 || s.AGCAttack > 1.0 {
		errs = append(errs, fmt.Errorf("agc_attack must be between 0.0 and 1.0, got %v", s.AGCAttack))
	}
	if s.AGCWarmupBlocks < 0 {
		errs = append(errs, fmt.Errorf("agc_warmup_blocks must be non-negative, got %d", s.AGCWarmupBlocks))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Timing derives the Morse timing from pulses_per_minute.
func (s *Settings) Timing() (cw.Timing, error) {
	return cw.FromPulsesPerMinute(s.PulsesPerMinute)
}

// BlobAreaRange converts the blob radius bounds to pixel areas.
func (s *Settings) BlobAreaRange() (lo, hi float64) {
	area := func(r float64) float64 { return max(math.Pi*r*r, minRange) }
	return area(s.BlobRadiusMin), area(s.BlobRadiusMax)
}

// CircularityRange returns the accepted circularity bounds.
func (s *Settings) CircularityRange() (lo, hi float64) {
	return max(s.CircularityMin, minRange), s.CircularityMax
}

// LiveTiming is the current timing. It is safe for concurrent use and is
// replaced whenever the config file changes pulses_per_minute.
type LiveTiming struct {
	current atomic.Pointer[cw.Timing]
}

// NewLiveTiming starts from t.
func NewLiveTiming(t cw.Timing) *LiveTiming {
	l := &LiveTiming{}
	l.Store(t)
	return l
}

// Load returns the current timing. It matches cw.TimingFunc.
func (l *LiveTiming) Load() cw.Timing {
	return *l.current.Load()
}

// Store replaces the current timing.
func (l *LiveTiming) Store(t cw.Timing) {
	l.current.Store(&t)
}

// Watch follows edits to the config file and updates live. Invalid edits
// are logged and ignored.
func Watch(live *LiveTiming, logger *slog.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		reload(live, logger, e.Name)
	})
	viper.WatchConfig()
}

func reload(live *LiveTiming, logger *slog.Logger, name string) {
	s, err := Get()
	if err != nil {
		logger.Warn("ignoring config change", "file", name, "error", err)
		return
	}
	t, err := s.Timing()
	if err != nil {
		logger.Warn("ignoring config change", "file", name, "error", err)
		return
	}
	if t != live.Load() {
		live.Store(t)
		logger.Info("timing changed", "pulses_per_minute", s.PulsesPerMinute, "dit_ms", t.Dit)
	}
}
