package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/e7canasta/device-camera-monitor/internal/config"
	"github.com/e7canasta/device-camera-monitor/modules/acquisition"
	"github.com/e7canasta/device-camera-monitor/modules/devicecapture"
	"github.com/e7canasta/device-camera-monitor/modules/framepipeline"
	"github.com/e7canasta/device-camera-monitor/modules/mainqueue"
	"github.com/e7canasta/device-camera-monitor/modules/preview"
)

const (
	version = "v0.1.0"
)

// Flags for the monitor binary
type Flags struct {
	ConfigPath  string
	Debug       bool
	TestPattern bool
}

func main() {
	flags := parseFlags()

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg, flags.Debug)
	slog.SetDefault(logger)

	printBanner(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("Monitor failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Monitor stopped")
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to YAML configuration (optional)")
	flag.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&flags.TestPattern, "test-pattern", false, "Offer a synthetic test pattern device")

	flag.Parse()

	return flags
}

func loadConfig(flags Flags) (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigPath != "" {
		loaded, err := config.Load(flags.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.TestPattern {
		cfg.Acquisition.TestPattern = true
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	orientation, err := devicecapture.ParseOrientation(cfg.Capture.Orientation)
	if err != nil {
		return err
	}

	// 1. Main serial queue: every session and display change runs here
	queue := mainqueue.New()
	queueDone := make(chan struct{})
	go func() {
		queue.Run(context.Background())
		close(queueDone)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		acq          *acquisition.Acquirer
		shutdownOnce sync.Once
	)
	shutdown := func() {
		shutdownOnce.Do(func() {
			logger.Info("Shutting down")
			if acq != nil {
				queue.Dispatch(func() {
					if err := acq.Stop(); err != nil {
						logger.Error("Failed to stop capture gracefully", "error", err)
					}
				})
			}
			queue.Close()

			select {
			case <-queueDone:
			case <-time.After(cfg.StopTimeout() + time.Second):
				logger.Warn("Main queue did not drain before timeout")
			}
			cancel()
		})
	}

	// 2. Preview window; closing it terminates the application
	window := preview.New(preview.Config{
		Title:    cfg.Display.WindowTitle,
		OnClosed: shutdown,
	})

	// 3. Frame pipeline presenting onto the window through the queue
	pipeline, err := framepipeline.New(framepipeline.Config{
		FixedHeight:   cfg.Display.FixedHeight,
		Orientation:   orientation,
		Interpolation: cfg.Display.Interpolation,
	}, queue, window)
	if err != nil {
		return fmt.Errorf("failed to create frame pipeline: %w", err)
	}

	// 4. Capture session and device discovery
	session := devicecapture.NewSession(devicecapture.SessionConfig{
		Orientation: orientation,
		StopTimeout: cfg.StopTimeout(),
	})
	discovery := devicecapture.NewDiscovery(devicecapture.DiscoveryConfig{
		PollInterval: cfg.PollInterval(),
		TestPattern:  cfg.Acquisition.TestPattern,
	})

	// 5. Acquisition attaches the device and starts the session
	acq, err = acquisition.New(acquisition.Config{
		Filter: devicecapture.DeviceFilter{
			Manufacturer: cfg.Acquisition.Manufacturer,
			ModelID:      cfg.Acquisition.Model,
		},
		DiscardLateFrames: *cfg.Capture.DiscardLateFrames,
	}, session, discovery, queue, pipeline)
	if err != nil {
		return fmt.Errorf("failed to create acquisition: %w", err)
	}

	queue.Dispatch(func() {
		if err := acq.Start(ctx); err != nil {
			logger.Error("Acquisition failed to start", "error", err)
		}
	})

	// 6. Signals close the window like the user would
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Shutdown signal received, closing window...")
			window.Close()
		case <-ctx.Done():
		}
	}()

	// 7. Statistics reporter
	if interval := cfg.StatsInterval(); interval > 0 {
		go reportStats(ctx, interval, session, pipeline, acq)
	}

	// Blocks until the window closes
	window.ShowAndRun()
	shutdown()

	printFinalStats(session, pipeline, acq)
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║    Device Camera Monitor - iOS device preview                 ║")
	fmt.Printf("║                    Version %-34s ║\n", version)
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Configuration:")

	fmt.Printf("  Device Filter:   %s / %s\n", cfg.Acquisition.Manufacturer, cfg.Acquisition.Model)
	fmt.Printf("  Test Pattern:    %v\n", cfg.Acquisition.TestPattern)
	fmt.Printf("  Fixed Height:    %d\n", cfg.Display.FixedHeight)
	fmt.Printf("  Orientation:     %s\n", cfg.Capture.Orientation)
	fmt.Printf("  Interpolation:   %s\n", cfg.Display.Interpolation)
	fmt.Printf("  Discard Late:    %v\n", *cfg.Capture.DiscardLateFrames)
	fmt.Printf("  Stats Interval:  %v\n", cfg.StatsInterval())
	fmt.Println()
	fmt.Println("Pipeline:")
	fmt.Println("  device-capture → main queue → frame-pipeline → preview")
	fmt.Println()
	fmt.Println("Close the window or press Ctrl+C to stop")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}
