package devicecapture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture/internal/avf"
)

// DeviceFilter selects devices by vendor and model. Empty fields match anything.
type DeviceFilter struct {
	Manufacturer string
	ModelID      string
}

// Match reports whether d satisfies the filter
func (f DeviceFilter) Match(d Device) bool {
	if f.Manufacturer != "" && d.Manufacturer != f.Manufacturer {
		return false
	}
	if f.ModelID != "" && d.ModelID != f.ModelID {
		return false
	}
	return true
}

// FirstMatching returns the first device accepted by f
func FirstMatching(devices []Device, f DeviceFilter) (Device, bool) {
	for _, d := range devices {
		if f.Match(d) {
			return d, true
		}
	}
	return Device{}, false
}

// TestPatternDevice is the synthetic device offered when DiscoveryConfig.TestPattern is set
var TestPatternDevice = Device{
	UniqueID:      "test-pattern",
	Name:          "Test Pattern",
	Manufacturer:  "GStreamer",
	ModelID:       "videotestsrc",
	SourceElement: avf.SourceTestPattern,
}

// DiscoveryConfig contains configuration for device discovery
type DiscoveryConfig struct {
	// PollInterval is how often Watch rescans when the platform posts no
	// device notifications (default: 1s)
	PollInterval time.Duration
	// TestPattern announces TestPatternDevice as a connect event when Watch starts
	TestPattern bool
}

// Discovery enumerates external capture devices and reports connections
type Discovery struct {
	cfg    DiscoveryConfig
	enable func() error
	list   func() ([]Device, error)
	// observe calls notify on every device connect or disconnect until
	// the returned remove func runs. nil on platforms without notifications.
	observe func(notify func()) (remove func(), err error)
}

// NewDiscovery returns a Discovery backed by the platform's device APIs
func NewDiscovery(cfg DiscoveryConfig) *Discovery {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Discovery{
		cfg:    cfg,
		enable:  enableScreenCaptureDevices,
		list:    listExternalDevices,
		observe: observeDeviceNotifications,
	}
}

// EnableExternalDevices opts the process in to seeing iOS devices as
// capture devices. Must run before the first enumeration.
func (d *Discovery) EnableExternalDevices() error {
	if err := d.enable(); err != nil {
		return fmt.Errorf("device-capture: enable external devices: %w", err)
	}
	slog.Debug("device-capture: external device discovery enabled")
	return nil
}

// Devices returns the external devices currently visible
func (d *Discovery) Devices() ([]Device, error) {
	devices, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("device-capture: list devices: %w", err)
	}
	return devices, nil
}

// Watch reports devices that appear after the call, one value per
// connection. Devices in known are treated as already present, so a
// device that connects after the caller's own enumeration is never
// missed. The channel closes when ctx is done.
//
// Rescans are driven by the platform's connect and disconnect
// notifications where available, and by PollInterval otherwise.
func (d *Discovery) Watch(ctx context.Context, known []Device) <-chan Device {
	out := make(chan Device)

	seen := make(map[string]bool, len(known))
	for _, dev := range known {
		seen[dev.UniqueID] = true
	}

	go func() {
		defer close(out)

		if d.cfg.TestPattern {
			seen[TestPatternDevice.UniqueID] = true
			if !send(ctx, out, TestPatternDevice) {
				return
			}
		}

		rescan, stop := d.rescanTrigger()
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-rescan:
			}

			devices, err := d.list()
			if err != nil {
				slog.Warn("device-capture: device scan failed", "error", err)
				continue
			}

			present := make(map[string]bool, len(devices))
			for _, dev := range devices {
				present[dev.UniqueID] = true
				if seen[dev.UniqueID] {
					continue
				}
				seen[dev.UniqueID] = true
				slog.Info("device-capture: device connected", "device", dev.String())
				if !send(ctx, out, dev) {
					return
				}
			}

			// Forget disconnected devices so a reconnect is reported again
			for id := range seen {
				if !present[id] && id != TestPatternDevice.UniqueID {
					delete(seen, id)
				}
			}
		}
	}()

	return out
}

// rescanTrigger subscribes to device notifications, falling back to a
// ticker when the platform has none. stop releases either.
func (d *Discovery) rescanTrigger() (<-chan struct{}, func()) {
	if d.observe != nil {
		// One pending rescan covers any number of notifications
		trigger := make(chan struct{}, 1)
		remove, err := d.observe(func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
		if err == nil {
			slog.Debug("device-capture: watching device notifications")
			return trigger, remove
		}
		slog.Warn("device-capture: device notifications unavailable, polling instead",
			"error", err,
			"interval", d.cfg.PollInterval,
		)
	}

	ticker := time.NewTicker(d.cfg.PollInterval)
	trigger := make(chan struct{})
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case trigger <- struct{}{}:
				case <-done:
					return
				}
			}
		}
	}()
	return trigger, func() {
		ticker.Stop()
		close(done)
	}
}

func send(ctx context.Context, out chan<- Device, dev Device) bool {
	select {
	case out <- dev:
		return true
	case <-ctx.Done():
		return false
	}
}
