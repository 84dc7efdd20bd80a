// Package acquisition finds an external capture device and attaches it to
// the capture session.
//
// At startup the acquirer configures the first device matching its filter.
// When none is present it subscribes to connect events and configures
// whichever device connects next, unfiltered. Every session mutation runs
// on the main queue.
package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture"
)

// DefaultFilter selects iOS devices exposed through CoreMediaIO
var DefaultFilter = devicecapture.DeviceFilter{
	Manufacturer: "Apple Inc.",
	ModelID:      "iOS Device",
}

// Session is the part of devicecapture.Session the acquirer drives
type Session interface {
	CanAddInput(in *devicecapture.DeviceInput) bool
	AddInput(in *devicecapture.DeviceInput) error
	CanAddOutput(out *devicecapture.VideoDataOutput) bool
	AddOutput(out *devicecapture.VideoDataOutput) error
	IsRunning() bool
	StartRunning() error
	StopRunning() error
}

// Enumerator lists devices and reports new connections
type Enumerator interface {
	EnableExternalDevices() error
	Devices() ([]devicecapture.Device, error)
	// Watch reports devices connected after known was listed
	Watch(ctx context.Context, known []devicecapture.Device) <-chan devicecapture.Device
}

// Dispatcher runs closures serially on the main context
type Dispatcher interface {
	Dispatch(fn func()) bool
}

// Config contains configuration for an Acquirer
type Config struct {
	// Filter selects the device configured at startup (default: DefaultFilter)
	Filter devicecapture.DeviceFilter
	// DiscardLateFrames is applied to the output when it is attached
	DiscardLateFrames bool
}

// Stats contains acquisition counters
type Stats struct {
	// Configured counts configure attempts that reached the session
	Configured uint64
	// InputFailures counts devices whose input could not be built
	InputFailures uint64
	// ConnectEvents counts devices reported by the subscription
	ConnectEvents uint64
	// Subscribed reports whether a connect subscription is active
	Subscribed bool
	// Device is the name of the last configured device
	Device string
}

// Acquirer wires a discovered device into a capture session
type Acquirer struct {
	cfg        Config
	session    Session
	enumerator Enumerator
	queue      Dispatcher
	output     *devicecapture.VideoDataOutput

	// newInput builds the device input; replaced in tests
	newInput func(devicecapture.Device) (*devicecapture.DeviceInput, error)

	mu          sync.Mutex
	unsubscribe context.CancelFunc
	watchDone   chan struct{}
	lastDevice  string

	configured    uint64
	inputFailures uint64
	connectEvents uint64
}

// New creates an acquirer that attaches devices to session and routes
// their frames to sink.
func New(cfg Config, session Session, enumerator Enumerator, queue Dispatcher, sink devicecapture.FrameSink) (*Acquirer, error) {
	if session == nil {
		return nil, fmt.Errorf("acquisition: session is required")
	}
	if enumerator == nil {
		return nil, fmt.Errorf("acquisition: enumerator is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("acquisition: dispatcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("acquisition: frame sink is required")
	}
	if cfg.Filter == (devicecapture.DeviceFilter{}) {
		cfg.Filter = DefaultFilter
	}

	output := devicecapture.NewVideoDataOutput()
	output.SetSampleBufferDelegate(sink)

	return &Acquirer{
		cfg:        cfg,
		session:    session,
		enumerator: enumerator,
		queue:      queue,
		output:     output,
		newInput:   devicecapture.NewDeviceInput,
	}, nil
}

// Start enables external devices and configures the first matching one.
// If none matches, it subscribes to connect events until Stop or ctx is
// done. Must be called from the main context.
func (a *Acquirer) Start(ctx context.Context) error {
	if err := a.enumerator.EnableExternalDevices(); err != nil {
		slog.Warn("acquisition: external devices not enabled, only built-in sources will be visible",
			"error", err,
		)
	}

	devices, err := a.enumerator.Devices()
	if err != nil {
		slog.Warn("acquisition: device enumeration failed", "error", err)
	}
	slog.Info("acquisition: devices found", "count", len(devices))

	if device, ok := devicecapture.FirstMatching(devices, a.cfg.Filter); ok {
		slog.Info("acquisition: matching device present", "device", device.String())
		a.Configure(device)
		return nil
	}

	return a.subscribe(ctx, devices)
}

// subscribe watches for devices connected after known was enumerated
func (a *Acquirer) subscribe(ctx context.Context, known []devicecapture.Device) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unsubscribe != nil {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	events := a.enumerator.Watch(watchCtx, known)
	done := make(chan struct{})
	a.unsubscribe = cancel
	a.watchDone = done

	go func() {
		defer close(done)
		for device := range events {
			atomic.AddUint64(&a.connectEvents, 1)
			device := device
			if !a.queue.Dispatch(func() { a.Configure(device) }) {
				slog.Debug("acquisition: main queue closed, dropping connect event", "device", device.String())
				return
			}
		}
	}()

	slog.Info("acquisition: no matching device, waiting for a device to connect",
		"manufacturer", a.cfg.Filter.Manufacturer,
		"model", a.cfg.Filter.ModelID,
	)
	return nil
}

// Configure attaches device to the session and starts it.
//
// A failed input is logged and abandoned; the subscription, if any, stays
// active. Calling Configure again never attaches a second input or
// output. Must be called from the main context.
func (a *Acquirer) Configure(device devicecapture.Device) {
	input, err := a.newInput(device)
	if err != nil {
		atomic.AddUint64(&a.inputFailures, 1)
		slog.Error("acquisition: failed to create device input",
			"device", device.String(),
			"error", err,
		)
		return
	}
	atomic.AddUint64(&a.configured, 1)

	if a.session.CanAddInput(input) {
		if err := a.session.AddInput(input); err != nil {
			slog.Error("acquisition: failed to add input", "device", device.String(), "error", err)
			return
		}
		a.mu.Lock()
		a.lastDevice = device.Name
		a.mu.Unlock()

		if a.session.CanAddOutput(a.output) {
			a.output.SetAlwaysDiscardsLateVideoFrames(a.cfg.DiscardLateFrames)
			if err := a.session.AddOutput(a.output); err != nil {
				slog.Error("acquisition: failed to add output", "error", err)
			}
		}
	} else {
		slog.Debug("acquisition: session already has an input", "device", device.String())
	}

	if a.session.IsRunning() {
		return
	}
	if err := a.session.StartRunning(); err != nil {
		slog.Error("acquisition: failed to start session", "device", device.String(), "error", err)
		return
	}
	slog.Info("acquisition: device configured", "device", device.String())
}

// Stop stops the session, then cancels the connect subscription.
// Must be called from the main context. Safe to call more than once.
func (a *Acquirer) Stop() error {
	err := a.session.StopRunning()

	a.mu.Lock()
	cancel := a.unsubscribe
	done := a.watchDone
	a.unsubscribe = nil
	a.watchDone = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		slog.Debug("acquisition: connect subscription cancelled")
	}

	if err != nil {
		return fmt.Errorf("acquisition: stop session: %w", err)
	}
	return nil
}

// Stats returns acquisition counters
func (a *Acquirer) Stats() Stats {
	a.mu.Lock()
	subscribed := a.unsubscribe != nil
	device := a.lastDevice
	a.mu.Unlock()

	return Stats{
		Configured:    atomic.LoadUint64(&a.configured),
		InputFailures: atomic.LoadUint64(&a.inputFailures),
		ConnectEvents: atomic.LoadUint64(&a.connectEvents),
		Subscribed:    subscribed,
		Device:        device,
	}
}
