package avf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCounters holds atomic counters for different error categories
type ErrorCounters struct {
	Device      *uint64
	Permission  *uint64
	Negotiation *uint64
	Unknown     *uint64
}

// Add increments the counter for category
func (c *ErrorCounters) Add(category ErrorCategory) {
	switch category {
	case ErrCategoryDevice:
		atomic.AddUint64(c.Device, 1)
	case ErrCategoryPermission:
		atomic.AddUint64(c.Permission, 1)
	case ErrCategoryNegotiation:
		atomic.AddUint64(c.Negotiation, 1)
	default:
		atomic.AddUint64(c.Unknown, 1)
	}
}

// MonitorMetrics holds stream metrics for monitoring
type MonitorMetrics struct {
	Device     string
	FrameCount *uint64
	StartedAt  time.Time
}

// ErrSourceEnded is returned when the device source stops producing.
// avfvideosrc posts EOS when the device is unplugged or its screen
// capture session is torn down by the system.
var ErrSourceEnded = errors.New("capture source ended")

// MonitorPipelineBus blocks until the capture graph fails or ctx is done.
//
// Any EOS or error is terminal for a device graph: an unplugged or locked
// iPhone does not come back on the same graph, so nothing is retried here.
// Errors are counted per category. Warnings (dropped buffers, clock
// hiccups) are logged and the graph keeps running.
func MonitorPipelineBus(
	ctx context.Context,
	pipeline *gst.Pipeline,
	errorCounters *ErrorCounters,
	metrics *MonitorMetrics,
) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()

	for {
		if ctx.Err() != nil {
			slog.Debug("device-capture: bus monitor stopped", "device", metrics.Device)
			return nil
		}

		// Bounded wait so cancellation is noticed within one interval
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Warn("device-capture: device stopped producing frames",
				"device", metrics.Device,
				"uptime", time.Since(metrics.StartedAt),
				"frames_processed", atomic.LoadUint64(metrics.FrameCount),
			)
			return ErrSourceEnded

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			errorCounters.Add(category)

			slog.Error("device-capture: capture graph failed",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"hint", categoryHint(category),
				"device", metrics.Device,
				"frames_processed", atomic.LoadUint64(metrics.FrameCount),
			)
			return fmt.Errorf("%s error: %s", category.String(), gerr.Error())

		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			slog.Warn("device-capture: capture graph warning",
				"warning", gerr.Error(),
				"source", msg.Source(),
				"device", metrics.Device,
			)

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, current := msg.ParseStateChanged()
				slog.Debug("device-capture: graph state changed", "from", old, "to", current)
			}
		}
	}
}

// categoryHint suggests what the user can do about a failure
func categoryHint(category ErrorCategory) string {
	switch category {
	case ErrCategoryDevice:
		return "device unplugged or in use by another app; reconnect it"
	case ErrCategoryPermission:
		return "grant camera access to this binary in System Settings > Privacy"
	case ErrCategoryNegotiation:
		return "device offered no RGBA-convertible format"
	default:
		return ""
	}
}
