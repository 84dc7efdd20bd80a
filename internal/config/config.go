package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete monitor configuration
type Config struct {
	StatsIntervalS *int              `yaml:"stats_interval_s"` // Stats log period in seconds, 0 disables (default: 10)
	Display        DisplayConfig     `yaml:"display"`
	Acquisition    AcquisitionConfig `yaml:"acquisition"`
	Capture        CaptureConfig     `yaml:"capture"`
	Logging        LoggingConfig     `yaml:"logging"`
}

// DisplayConfig contains preview window settings
type DisplayConfig struct {
	FixedHeight   int    `yaml:"fixed_height"`  // Height every stream is fitted to (default: 640)
	WindowTitle   string `yaml:"window_title"`
	Interpolation string `yaml:"interpolation"` // nearest, approx-bilinear, bilinear, catmull-rom
}

// AcquisitionConfig contains device selection settings
type AcquisitionConfig struct {
	Manufacturer   string `yaml:"manufacturer"`     // Startup filter (default: Apple Inc.)
	Model          string `yaml:"model"`            // Startup filter (default: iOS Device)
	PollIntervalMS int    `yaml:"poll_interval_ms"` // Connect scan period (default: 1000)
	TestPattern    bool   `yaml:"test_pattern"`     // Announce a synthetic videotestsrc device
}

// CaptureConfig contains capture session settings
type CaptureConfig struct {
	Orientation       string `yaml:"orientation"`         // portrait, portrait-upside-down, landscape-right, landscape-left
	DiscardLateFrames *bool  `yaml:"discard_late_frames"` // default: true
	StopTimeoutMS     int    `yaml:"stop_timeout_ms"`     // default: 3000
}

// LoggingConfig contains slog handler settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: defaults are invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// PollInterval returns the connect scan period
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Acquisition.PollIntervalMS) * time.Millisecond
}

// StopTimeout returns the session stop timeout
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Capture.StopTimeoutMS) * time.Millisecond
}

// StatsInterval returns the stats log period, zero when disabled
func (c *Config) StatsInterval() time.Duration {
	if c.StatsIntervalS == nil {
		return 0
	}
	return time.Duration(*c.StatsIntervalS) * time.Second
}
