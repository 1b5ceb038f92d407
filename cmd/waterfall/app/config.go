package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	mhz = 1e6

	defaultWaterfallHeight  = 100
	defaultPSDDBResolution  = 90
	defaultSNRMin           = 0.0
	defaultSNRMax           = 50.0
	defaultSaveIntervalMins = 1
	defaultRotateSecs       = 900
	defaultPollIntervalMs   = 100
)

// Config represents the main application configuration.
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Scan        ScanConfig        `yaml:"scan"`
	Source      SourceConfig      `yaml:"source"`
	Waterfall   WaterfallConfig   `yaml:"waterfall"`
	Detection   DetectionConfig   `yaml:"detection"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ScanConfig describes the scanner's frequency plan. Frequencies are Hz in
// the file; the engine works in MHz.
type ScanConfig struct {
	MinFreqHz    float64 `yaml:"minFreqHz"`
	MaxFreqHz    float64 `yaml:"maxFreqHz"`
	SampleRateHz float64 `yaml:"sampleRateHz"`
	FFTLen       int     `yaml:"fftLen"`
}

// MinFreqMHz returns the lower bound of the plan in MHz.
func (c ScanConfig) MinFreqMHz() float64 { return c.MinFreqHz / mhz }

// MaxFreqMHz returns the upper bound of the plan in MHz.
func (c ScanConfig) MaxFreqMHz() float64 { return c.MaxFreqHz / mhz }

// ResolutionMHz returns the frequency bin width: sampleRate / fftLen, in MHz.
func (c ScanConfig) ResolutionMHz() float64 {
	return c.SampleRateHz / float64(c.FFTLen) / mhz
}

// SourceConfig describes the scan ingestion endpoints.
type SourceConfig struct {
	Endpoints      []string `yaml:"endpoints"`
	PollIntervalMs int      `yaml:"pollIntervalMs"`
	QueueCapacity  int      `yaml:"queueCapacity"`
}

// PollInterval returns the loop's rate-limiting sleep.
func (c SourceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SNRConfig enables SNR-relative normalization of the published matrix.
type SNRConfig struct {
	Enabled bool    `yaml:"enabled"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
}

// WaterfallConfig sizes the rolling matrix and its aggregates.
type WaterfallConfig struct {
	Height          int       `yaml:"height"`
	PSDDBResolution int       `yaml:"psdDbResolution"`
	TopN            int       `yaml:"topN"`
	SNR             SNRConfig `yaml:"snr"`
}

// DetectionConfig selects the peak-finding strategy; an empty type disables
// detection.
type DetectionConfig struct {
	Type string `yaml:"type"`
}

// SqliteConfig enables the SQLite detection index.
type SqliteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PersistenceConfig controls the on-disk ledger. An empty savePath disables
// persistence entirely.
type PersistenceConfig struct {
	SavePath            string       `yaml:"savePath"`
	SaveIntervalMinutes int          `yaml:"saveIntervalMinutes"`
	RotateSecs          int64        `yaml:"rotateSecs"`
	Sqlite              SqliteConfig `yaml:"sqlite"`
}

// SaveInterval returns the waterfall snapshot interval.
func (c PersistenceConfig) SaveInterval() time.Duration {
	return time.Duration(c.SaveIntervalMinutes) * time.Minute
}

// LoadConfig reads, parses and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(p, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate applies defaults and rejects configurations the engine cannot
// start with. Validation failures are fatal before the processing loop.
func (c *Config) Validate() error {
	if c.Scan.MaxFreqHz <= c.Scan.MinFreqHz {
		return fmt.Errorf("invalid frequency range: min=%f, max=%f Hz", c.Scan.MinFreqHz, c.Scan.MaxFreqHz)
	}
	if c.Scan.SampleRateHz <= 0 {
		return fmt.Errorf("invalid sampling rate: %f Hz", c.Scan.SampleRateHz)
	}
	if c.Scan.FFTLen <= 0 {
		return fmt.Errorf("invalid FFT length: %d", c.Scan.FFTLen)
	}

	if len(c.Source.Endpoints) == 0 {
		return fmt.Errorf("no scanner endpoints configured")
	}
	if c.Source.PollIntervalMs <= 0 {
		c.Source.PollIntervalMs = defaultPollIntervalMs
	}

	if c.Waterfall.Height <= 0 {
		c.Waterfall.Height = defaultWaterfallHeight
	}
	if c.Waterfall.PSDDBResolution <= 1 {
		c.Waterfall.PSDDBResolution = defaultPSDDBResolution
	}
	if c.Waterfall.TopN < 0 {
		return fmt.Errorf("invalid topN: %d", c.Waterfall.TopN)
	}
	if c.Waterfall.SNR.Enabled {
		if c.Waterfall.SNR.Max == 0 && c.Waterfall.SNR.Min == 0 {
			c.Waterfall.SNR.Min = defaultSNRMin
			c.Waterfall.SNR.Max = defaultSNRMax
		}
		if c.Waterfall.SNR.Max <= c.Waterfall.SNR.Min {
			return fmt.Errorf("invalid SNR range: min=%f, max=%f", c.Waterfall.SNR.Min, c.Waterfall.SNR.Max)
		}
	}

	if c.Persistence.SavePath != "" {
		if c.Persistence.SaveIntervalMinutes <= 0 {
			c.Persistence.SaveIntervalMinutes = defaultSaveIntervalMins
		}
		if c.Persistence.RotateSecs < 0 {
			return fmt.Errorf("invalid rotateSecs: %d", c.Persistence.RotateSecs)
		}
		if c.Persistence.RotateSecs == 0 {
			c.Persistence.RotateSecs = defaultRotateSecs
		}
		if c.Persistence.Sqlite.Enabled && c.Persistence.Sqlite.Path == "" {
			return fmt.Errorf("sqlite index enabled without a database path")
		}
	}

	return nil
}
