// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete proctoring configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Monitor   MonitorConfig   `yaml:"monitor"`
	Face      FaceConfig      `yaml:"face"`
	Noise     NoiseConfig     `yaml:"noise"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Media     MediaConfig     `yaml:"media"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the sections an environment may override. Only
// non-zero fields replace base values.
type Overrides struct {
	Monitor   *MonitorConfig   `yaml:"monitor,omitempty"`
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty"`
}

// MonitorConfig configures the sampling loop and the violation ledger.
type MonitorConfig struct {
	// SampleInterval is the period of the sampling timer.
	// Default: 3s
	SampleInterval time.Duration `yaml:"sample_interval"`

	// ViolationLimit is the ledger count at which the candidate is
	// disqualified.
	// Default: 3
	ViolationLimit int `yaml:"violation_limit"`

	// HistorySize is how many recent violations the ledger keeps.
	// Default: 10
	HistorySize int `yaml:"history_size"`
}

// FaceConfig bounds the skin-pixel ratio of the face heuristic.
type FaceConfig struct {
	// MinSkinRatio: below it, no face is in frame. Default: 0.02
	MinSkinRatio float64 `yaml:"min_skin_ratio"`

	// MaxSkinRatio: above it, several faces are in frame. Default: 0.35
	MaxSkinRatio float64 `yaml:"max_skin_ratio"`
}

// NoiseConfig configures the noise heuristic.
type NoiseConfig struct {
	// Threshold is the mean spectrum magnitude (0-255) above which a
	// sample is noisy. Default: 40
	Threshold float64 `yaml:"threshold"`

	// SpectrumBins is the number of frequency bins per snapshot.
	// Default: 256
	SpectrumBins int `yaml:"spectrum_bins"`
}

// TelemetryConfig configures the collector connection.
type TelemetryConfig struct {
	// CollectorURL is the collector base URL (ws:// or wss://). The
	// session path is appended to it.
	CollectorURL string `yaml:"collector_url"`

	// MaxReconnects is how many reconnects are attempted after a
	// close before telemetry gives up. Default: 5
	MaxReconnects int `yaml:"max_reconnects"`

	// ReconnectBackoff is the linear backoff step: attempt n waits
	// n*ReconnectBackoff. Default: 2s
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// DialTimeout bounds one connection attempt. Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Encoding is "json" (text frames) or "cbor" (binary frames).
	// Default: json
	Encoding string `yaml:"encoding"`

	// CadenceWindow is how many inter-keystroke gaps the typing
	// average covers. Default: 20
	CadenceWindow int `yaml:"cadence_window"`
}

// MediaConfig points the directory-backed media provider at recorded
// captures.
type MediaConfig struct {
	FrameDirectory string `yaml:"frame_directory"`
	SpectrumFile   string `yaml:"spectrum_file"`
}

// LoggingConfig configures the slog handler built by the binaries.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`

	// Format is json, text, or auto (text on a terminal, JSON
	// otherwise). Default: auto
	Format string `yaml:"format"`
}

// Default returns the configuration used for every value a file does
// not set.
func Default() *Config {
	return &Config{
		Environment: Development,
		Monitor: MonitorConfig{
			SampleInterval: 3 * time.Second,
			ViolationLimit: 3,
			HistorySize:    10,
		},
		Face: FaceConfig{
			MinSkinRatio: 0.02,
			MaxSkinRatio: 0.35,
		},
		Noise: NoiseConfig{
			Threshold:    40,
			SpectrumBins: 256,
		},
		Telemetry: TelemetryConfig{
			CollectorURL:     "ws://localhost:8000/api/monitoring",
			MaxReconnects:    5,
			ReconnectBackoff: 2 * time.Second,
			DialTimeout:      10 * time.Second,
			Encoding:         "json",
			CadenceWindow:    20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by PROCTOR_CONFIG. It fails when the
// variable is unset rather than guessing a location.
func Load() (*Config, error) {
	path := os.Getenv("PROCTOR_CONFIG")
	if path == "" {
		return nil, errors.New("PROCTOR_CONFIG environment variable not set; " +
			"set it to the path of your proctor config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads the file at path on top of Default, applies the
// environment section, and expands variables. It does not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	case ".json", ".jsonc":
		// JSON is a subset of YAML; one decoder keeps duration
		// handling identical across formats.
		data = jsonc.ToJSON(data)
	default:
		return fmt.Errorf("config %s: unsupported extension (want .yaml, .yml, .json, or .jsonc)", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if monitor := overrides.Monitor; monitor != nil {
		if monitor.SampleInterval != 0 {
			c.Monitor.SampleInterval = monitor.SampleInterval
		}
		if monitor.ViolationLimit != 0 {
			c.Monitor.ViolationLimit = monitor.ViolationLimit
		}
		if monitor.HistorySize != 0 {
			c.Monitor.HistorySize = monitor.HistorySize
		}
	}

	if telemetry := overrides.Telemetry; telemetry != nil {
		if telemetry.CollectorURL != "" {
			c.Telemetry.CollectorURL = telemetry.CollectorURL
		}
		if telemetry.MaxReconnects != 0 {
			c.Telemetry.MaxReconnects = telemetry.MaxReconnects
		}
		if telemetry.ReconnectBackoff != 0 {
			c.Telemetry.ReconnectBackoff = telemetry.ReconnectBackoff
		}
		if telemetry.DialTimeout != 0 {
			c.Telemetry.DialTimeout = telemetry.DialTimeout
		}
		if telemetry.Encoding != "" {
			c.Telemetry.Encoding = telemetry.Encoding
		}
		if telemetry.CadenceWindow != 0 {
			c.Telemetry.CadenceWindow = telemetry.CadenceWindow
		}
	}

	if logging := overrides.Logging; logging != nil {
		if logging.Level != "" {
			c.Logging.Level = logging.Level
		}
		if logging.Format != "" {
			c.Logging.Format = logging.Format
		}
	}
}

func (c *Config) expandVariables() {
	c.Telemetry.CollectorURL = expandVars(c.Telemetry.CollectorURL)
	c.Media.FrameDirectory = expandVars(c.Media.FrameDirectory)
	c.Media.SpectrumFile = expandVars(c.Media.SpectrumFile)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Monitor.SampleInterval <= 0 {
		errs = append(errs, errors.New("monitor.sample_interval must be positive"))
	}
	if c.Monitor.ViolationLimit <= 0 {
		errs = append(errs, errors.New("monitor.violation_limit must be positive"))
	}
	if c.Monitor.HistorySize <= 0 {
		errs = append(errs, errors.New("monitor.history_size must be positive"))
	}

	if c.Face.MinSkinRatio <= 0 || c.Face.MaxSkinRatio >= 1 || c.Face.MinSkinRatio >= c.Face.MaxSkinRatio {
		errs = append(errs, fmt.Errorf("face: need 0 < min_skin_ratio < max_skin_ratio < 1, got %v and %v",
			c.Face.MinSkinRatio, c.Face.MaxSkinRatio))
	}

	if c.Noise.Threshold <= 0 || c.Noise.Threshold >= 255 {
		errs = append(errs, fmt.Errorf("noise.threshold must be in (0, 255), got %v", c.Noise.Threshold))
	}
	if c.Noise.SpectrumBins <= 0 {
		errs = append(errs, errors.New("noise.spectrum_bins must be positive"))
	}

	if collector, err := url.Parse(c.Telemetry.CollectorURL); err != nil {
		errs = append(errs, fmt.Errorf("telemetry.collector_url: %w", err))
	} else if collector.Scheme != "ws" && collector.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("telemetry.collector_url must use ws or wss, got %q", c.Telemetry.CollectorURL))
	}
	if c.Telemetry.MaxReconnects < 0 {
		errs = append(errs, errors.New("telemetry.max_reconnects must not be negative"))
	}
	if c.Telemetry.ReconnectBackoff <= 0 {
		errs = append(errs, errors.New("telemetry.reconnect_backoff must be positive"))
	}
	if c.Telemetry.DialTimeout <= 0 {
		errs = append(errs, errors.New("telemetry.dial_timeout must be positive"))
	}
	if !slices.Contains([]string{"json", "cbor"}, c.Telemetry.Encoding) {
		errs = append(errs, fmt.Errorf("telemetry.encoding must be json or cbor, got %q", c.Telemetry.Encoding))
	}
	if c.Telemetry.CadenceWindow <= 0 {
		errs = append(errs, errors.New("telemetry.cadence_window must be positive"))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}
	if !slices.Contains([]string{"json", "text", "auto"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of json, text, auto; got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
