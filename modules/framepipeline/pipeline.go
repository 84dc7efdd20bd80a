package framepipeline

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture"
	"github.com/e7canasta/device-camera-monitor/modules/framepipeline/internal/fps"
	"golang.org/x/image/draw"
)

// Dispatcher runs closures serially on the application's main context
type Dispatcher interface {
	Dispatch(fn func()) bool
}

// Display is the surface presented frames are drawn to.
// Both methods are only called from the Dispatcher's context.
type Display interface {
	// SetFrameSize resizes the view to the target rectangle
	SetFrameSize(r Rect)
	// SetImage replaces the displayed image
	SetImage(img image.Image)
}

// Config contains configuration for a frame pipeline
type Config struct {
	// FixedHeight is the display height (default: 640)
	FixedHeight int
	// Orientation forced on every incoming connection (default: portrait)
	Orientation devicecapture.Orientation
	// Interpolation names the scaler (default: approx-bilinear)
	Interpolation string
	// FPSWindow is the number of presented frames used for FPS stats (default: 120)
	FPSWindow int
}

// Stats contains current pipeline statistics
type Stats struct {
	// FramesReceived counts frames delivered by the capture layer
	FramesReceived uint64
	// FramesDispatched counts frames queued on the main context
	FramesDispatched uint64
	// FramesPresented counts frames drawn to the display
	FramesPresented uint64
	// FramesSkipped counts frames dropped for a missing or malformed buffer
	FramesSkipped uint64
	// FramesRejected counts frames the main context refused (queue closed)
	FramesRejected uint64
	// Target is the cached display rectangle, zero before the first frame
	Target Rect
	// FPS is presentation rate over the recent window
	FPS fps.Stats
	// LastPresentLatency is capture-to-display time of the last frame
	LastPresentLatency time.Duration
}

// Pipeline receives captured frames and presents them fitted to a fixed
// height. It implements devicecapture.FrameSink.
//
// The target rectangle is set by the first presented frame and kept for
// the lifetime of the pipeline. Later frames of other sizes are stretched
// into it.
type Pipeline struct {
	cfg     Config
	interp  draw.Interpolator
	queue   Dispatcher
	display Display

	// target is written once, on the main context; read anywhere
	target atomic.Pointer[cachedTarget]

	fpsWindow *fps.Window

	// Statistics (atomic for thread-safety)
	framesReceived   uint64
	framesDispatched uint64
	framesPresented  uint64
	framesSkipped    uint64
	framesRejected   uint64
	lastLatencyNanos atomic.Int64
}

// New creates a pipeline that presents frames on display through queue.
//
// Fails fast on an unknown interpolation or missing collaborators.
func New(cfg Config, queue Dispatcher, display Display) (*Pipeline, error) {
	if queue == nil {
		return nil, fmt.Errorf("frame-pipeline: dispatcher is required")
	}
	if display == nil {
		return nil, fmt.Errorf("frame-pipeline: display is required")
	}
	if cfg.FixedHeight <= 0 {
		cfg.FixedHeight = DefaultFixedHeight
	}
	if cfg.FPSWindow <= 0 {
		cfg.FPSWindow = fps.DefaultWindowSize
	}

	interp, err := ParseInterpolation(cfg.Interpolation)
	if err != nil {
		return nil, err
	}

	slog.Info("frame-pipeline: created",
		"fixed_height", cfg.FixedHeight,
		"orientation", cfg.Orientation.String(),
		"interpolation", cfg.Interpolation,
	)

	return &Pipeline{
		cfg:       cfg,
		interp:    interp,
		queue:     queue,
		display:   display,
		fpsWindow: fps.NewWindow(cfg.FPSWindow),
	}, nil
}

// CaptureOutput forces the configured orientation on conn and queues the
// frame for presentation on the main context.
//
// Called from the capture streaming goroutine. Never blocks on the main
// context; a queued frame is presented even if capture stops meanwhile.
// The frame is released back to the capture layer once presentation
// starts, or at once if the main context refuses it.
func (p *Pipeline) CaptureOutput(frame *devicecapture.Frame, conn devicecapture.Connection) {
	atomic.AddUint64(&p.framesReceived, 1)

	if conn != nil {
		conn.SetVideoOrientation(p.cfg.Orientation)
	}

	if !p.queue.Dispatch(func() { p.present(frame) }) {
		frame.Release()
		atomic.AddUint64(&p.framesRejected, 1)
		slog.Debug("frame-pipeline: main queue closed, frame not presented")
		return
	}
	atomic.AddUint64(&p.framesDispatched, 1)
}

// present runs on the main context only
func (p *Pipeline) present(frame *devicecapture.Frame) {
	frame.Release()

	src, err := frameImage(frame)
	if err != nil {
		atomic.AddUint64(&p.framesSkipped, 1)
		attrs := []any{"error", err}
		if frame != nil {
			attrs = append(attrs, "seq", frame.Seq, "trace_id", frame.TraceID)
		}
		slog.Warn("frame-pipeline: skipping frame", attrs...)
		return
	}

	target := p.targetFor(frame)
	p.display.SetImage(render(src, target, p.interp))

	atomic.AddUint64(&p.framesPresented, 1)
	now := time.Now()
	p.fpsWindow.Add(now)
	if !frame.Timestamp.IsZero() {
		p.lastLatencyNanos.Store(int64(now.Sub(frame.Timestamp)))
	}
}

// targetFor returns the cached target, computing it from frame the first time
func (p *Pipeline) targetFor(frame *devicecapture.Frame) Rect {
	if t := p.target.Load(); t != nil {
		if frame.Width != t.srcW || frame.Height != t.srcH {
			slog.Debug("frame-pipeline: frame size differs from first frame, stretching",
				"frame", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
				"target", t.Rect.String(),
				"seq", frame.Seq,
			)
		}
		return t.Rect
	}

	r := FitToHeight(frame.Width, frame.Height, p.cfg.FixedHeight)
	p.target.Store(&cachedTarget{Rect: r, srcW: frame.Width, srcH: frame.Height})
	p.display.SetFrameSize(r)

	slog.Info("frame-pipeline: target rectangle set",
		"source", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
		"target", r.String(),
		"device_id", frame.DeviceID,
		"trace_id", frame.TraceID,
	)
	return r
}

// cachedTarget remembers the frame size the target was fitted to
type cachedTarget struct {
	Rect
	srcW, srcH int
}

// TargetRect returns the cached target rectangle.
// ok is false until the first frame has been presented.
func (p *Pipeline) TargetRect() (Rect, bool) {
	t := p.target.Load()
	if t == nil {
		return Rect{}, false
	}
	return t.Rect, true
}

// Stats returns current pipeline statistics
func (p *Pipeline) Stats() Stats {
	target, _ := p.TargetRect()
	return Stats{
		FramesReceived:     atomic.LoadUint64(&p.framesReceived),
		FramesDispatched:   atomic.LoadUint64(&p.framesDispatched),
		FramesPresented:    atomic.LoadUint64(&p.framesPresented),
		FramesSkipped:      atomic.LoadUint64(&p.framesSkipped),
		FramesRejected:     atomic.LoadUint64(&p.framesRejected),
		Target:             target,
		FPS:                p.fpsWindow.Stats(),
		LastPresentLatency: time.Duration(p.lastLatencyNanos.Load()),
	}
}
