package config

import (
	"fmt"
)

var (
	validOrientations   = []string{"portrait", "portrait-upside-down", "landscape-right", "landscape-left"}
	validInterpolations = []string{"nearest", "approx-bilinear", "bilinear", "catmull-rom"}
	validLevels         = []string{"debug", "info", "warn", "error"}
	validFormats        = []string{"text", "json"}
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	if cfg.StatsIntervalS == nil {
		interval := 10
		cfg.StatsIntervalS = &interval
	}
	if *cfg.StatsIntervalS < 0 {
		return fmt.Errorf("stats_interval_s must be >= 0")
	}

	// Display
	if cfg.Display.FixedHeight < 0 {
		return fmt.Errorf("display.fixed_height must be > 0")
	}
	if cfg.Display.FixedHeight == 0 {
		cfg.Display.FixedHeight = 640
	}
	if cfg.Display.WindowTitle == "" {
		cfg.Display.WindowTitle = "Device Camera Monitor"
	}
	if cfg.Display.Interpolation == "" {
		cfg.Display.Interpolation = "approx-bilinear"
	}
	if !oneOf(cfg.Display.Interpolation, validInterpolations) {
		return fmt.Errorf("display.interpolation must be one of %v, got %q", validInterpolations, cfg.Display.Interpolation)
	}

	// Acquisition
	if cfg.Acquisition.Manufacturer == "" && cfg.Acquisition.Model == "" {
		cfg.Acquisition.Manufacturer = "Apple Inc."
		cfg.Acquisition.Model = "iOS Device"
	}
	if cfg.Acquisition.PollIntervalMS < 0 {
		return fmt.Errorf("acquisition.poll_interval_ms must be > 0")
	}
	if cfg.Acquisition.PollIntervalMS == 0 {
		cfg.Acquisition.PollIntervalMS = 1000
	}

	// Capture
	if cfg.Capture.Orientation == "" {
		cfg.Capture.Orientation = "portrait"
	}
	if !oneOf(cfg.Capture.Orientation, validOrientations) {
		return fmt.Errorf("capture.orientation must be one of %v, got %q", validOrientations, cfg.Capture.Orientation)
	}
	if cfg.Capture.DiscardLateFrames == nil {
		discard := true
		cfg.Capture.DiscardLateFrames = &discard
	}
	if cfg.Capture.StopTimeoutMS < 0 {
		return fmt.Errorf("capture.stop_timeout_ms must be > 0")
	}
	if cfg.Capture.StopTimeoutMS == 0 {
		cfg.Capture.StopTimeoutMS = 3000
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if !oneOf(cfg.Logging.Level, validLevels) {
		return fmt.Errorf("logging.level must be one of %v, got %q", validLevels, cfg.Logging.Level)
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if !oneOf(cfg.Logging.Format, validFormats) {
		return fmt.Errorf("logging.format must be one of %v, got %q", validFormats, cfg.Logging.Format)
	}

	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
