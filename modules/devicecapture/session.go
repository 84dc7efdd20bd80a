package devicecapture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture/internal/avf"
)

// SessionConfig contains configuration for a capture session
type SessionConfig struct {
	// Orientation applied before the first frame arrives
	Orientation Orientation
	// StopTimeout bounds how long StopRunning waits for goroutines (default: 3s)
	StopTimeout time.Duration
}

// Session coordinates one device input and one frame output.
//
// StartRunning and StopRunning are idempotent. They are not reentrant-safe
// against each other; callers serialize them on the main queue.
type Session struct {
	cfg      SessionConfig
	newGraph graphFactory

	mu      sync.Mutex
	input   *DeviceInput
	output  *VideoDataOutput
	graph   captureGraph
	conn    *connection
	running bool
	started time.Time

	// Lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics (atomic for thread-safety)
	frameCount    uint64
	framesSkipped uint64
	framesDropped uint64
	bytesRead     uint64
	lastWidth     atomic.Int64
	lastHeight    atomic.Int64

	// Error telemetry (atomic for thread-safety)
	errorsDevice      uint64
	errorsPermission  uint64
	errorsNegotiation uint64
	errorsUnknown     uint64
}

// NewSession creates an idle session with no input or output
func NewSession(cfg SessionConfig) *Session {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	return &Session{
		cfg:      cfg,
		newGraph: newGstGraph,
	}
}

// CanAddInput reports whether in can be attached (the session holds one input)
func (s *Session) CanAddInput(in *DeviceInput) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return in != nil && s.input == nil
}

// AddInput attaches in as the session's device input
func (s *Session) AddInput(in *DeviceInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in == nil {
		return ErrNoInput
	}
	if s.input != nil {
		return ErrInputAlreadyAttached
	}
	s.input = in

	slog.Info("device-capture: input attached", "device", in.device.String())
	return nil
}

// CanAddOutput reports whether out can be attached (the session holds one output)
func (s *Session) CanAddOutput(out *VideoDataOutput) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return out != nil && s.output == nil
}

// AddOutput attaches out as the session's frame output
func (s *Session) AddOutput(out *VideoDataOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if out == nil {
		return fmt.Errorf("device-capture: output is nil")
	}
	if s.output != nil {
		return ErrOutputAlreadyAttached
	}
	s.output = out

	slog.Info("device-capture: output attached",
		"discard_late_frames", out.AlwaysDiscardsLateVideoFrames(),
	)
	return nil
}

// Inputs returns the attached inputs (zero or one)
func (s *Session) Inputs() []*DeviceInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == nil {
		return nil
	}
	return []*DeviceInput{s.input}
}

// Outputs returns the attached outputs (zero or one)
func (s *Session) Outputs() []*VideoDataOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output == nil {
		return nil
	}
	return []*VideoDataOutput{s.output}
}

// IsRunning reports whether the session is streaming
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// StartRunning builds the capture graph and starts streaming
//
// This method:
//  1. Returns nil immediately if already running
//  2. Creates the capture graph for the attached input
//  3. Registers the sample callback that feeds the output's sink
//  4. Starts the graph and a background bus monitor
//
// Frames arrive asynchronously on the graph's streaming thread.
func (s *Session) StartRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Debug("device-capture: session already running")
		return nil
	}
	if s.input == nil {
		return ErrNoInput
	}

	discardLate := true
	if s.output != nil {
		discardLate = s.output.AlwaysDiscardsLateVideoFrames()
	}

	device := s.input.device
	graph, err := s.newGraph(avf.PipelineConfig{
		SourceElement:     device.SourceElement,
		DeviceIndex:       device.Index,
		FlipMethod:        flipMethod(s.cfg.Orientation),
		DiscardLateFrames: discardLate,
	})
	if err != nil {
		return fmt.Errorf("device-capture: failed to create pipeline: %w", err)
	}

	conn := newConnection(s.cfg.Orientation, graph.SetFlipMethod)
	output := s.output

	// One frame may be held by the sink at a time when late frames are
	// discarded. The slot is freed by Frame.Release.
	var inFlight atomic.Bool

	cb := &avf.CallbackContext{
		FrameCounter:  &s.frameCount,
		BytesRead:     &s.bytesRead,
		FramesSkipped: &s.framesSkipped,
		Deliver: func(f avf.Frame) {
			s.lastWidth.Store(int64(f.Width))
			s.lastHeight.Store(int64(f.Height))

			if output == nil {
				return
			}
			sink := output.delegate()
			if sink == nil {
				return
			}

			if discardLate && !inFlight.CompareAndSwap(false, true) {
				dropped := atomic.AddUint64(&s.framesDropped, 1)
				slog.Debug("device-capture: late frame discarded",
					"seq", f.Seq,
					"dropped_total", dropped,
				)
				return
			}

			frame := &Frame{
				Seq:       f.Seq,
				Timestamp: f.Timestamp,
				Width:     f.Width,
				Height:    f.Height,
				Stride:    f.Stride,
				Data:      f.Data,
				DeviceID:  device.UniqueID,
				TraceID:   f.TraceID,
			}
			if discardLate {
				var once sync.Once
				frame.release = func() {
					once.Do(func() { inFlight.Store(false) })
				}
			}
			sink.CaptureOutput(frame, conn)
		},
	}

	if err := graph.Play(cb); err != nil {
		if derr := graph.Destroy(); derr != nil {
			slog.Error("device-capture: failed to destroy pipeline", "error", derr)
		}
		return fmt.Errorf("device-capture: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.graph = graph
	s.conn = conn
	s.cancel = cancel
	s.running = true
	s.started = time.Now()

	s.wg.Add(1)
	go s.monitor(ctx, graph, device)

	slog.Info("device-capture: session started",
		"device", device.String(),
		"orientation", s.cfg.Orientation.String(),
		"discard_late_frames", discardLate,
	)
	return nil
}

// monitor watches the graph until shutdown. A graph failure stops the
// session; reattaching is left to the caller.
func (s *Session) monitor(ctx context.Context, graph captureGraph, device Device) {
	defer s.wg.Done()

	err := graph.Monitor(ctx,
		&avf.ErrorCounters{
			Device:      &s.errorsDevice,
			Permission:  &s.errorsPermission,
			Negotiation: &s.errorsNegotiation,
			Unknown:     &s.errorsUnknown,
		},
		&avf.MonitorMetrics{
			Device:     device.Name,
			FrameCount: &s.frameCount,
			StartedAt:  time.Now(),
		},
	)
	if err == nil {
		return
	}

	slog.Error("device-capture: session stopped after pipeline failure",
		"error", err,
		"device", device.String(),
		"frames_processed", atomic.LoadUint64(&s.frameCount),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph != graph {
		return
	}
	if derr := graph.Destroy(); derr != nil {
		slog.Error("device-capture: failed to destroy pipeline", "error", derr)
	}
	s.graph = nil
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// StopRunning stops streaming and releases the capture graph
//
// Idempotent - returns nil if the session is not running. Inputs and
// outputs stay attached so the session can be started again.
func (s *Session) StopRunning() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		slog.Debug("device-capture: session not running, nothing to stop")
		return nil
	}

	graph := s.graph
	cancel := s.cancel
	s.graph = nil
	s.cancel = nil
	s.running = false
	started := s.started
	s.mu.Unlock()

	slog.Info("device-capture: stopping session")

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("device-capture: goroutines stopped cleanly")
	case <-time.After(s.cfg.StopTimeout):
		slog.Warn("device-capture: stop timeout exceeded, some goroutines may still be running")
	}

	var err error
	if graph != nil {
		if derr := graph.Destroy(); derr != nil {
			err = fmt.Errorf("device-capture: failed to destroy pipeline: %w", derr)
		}
	}

	slog.Info("device-capture: session stopped",
		"frames_captured", atomic.LoadUint64(&s.frameCount),
		"uptime", time.Since(started),
	)
	return err
}

// Connection returns the connection of the running graph, nil when stopped
func (s *Session) Connection() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.running {
		return nil
	}
	return s.conn
}

// Stats returns current session statistics
//
// Thread-safe - uses atomic operations for counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	running := s.running
	var device string
	if s.input != nil {
		device = s.input.device.Name
	}
	s.mu.Unlock()

	var resolution string
	if w, h := s.lastWidth.Load(), s.lastHeight.Load(); w > 0 && h > 0 {
		resolution = fmt.Sprintf("%dx%d", w, h)
	}

	return SessionStats{
		FrameCount:        atomic.LoadUint64(&s.frameCount),
		FramesSkipped:     atomic.LoadUint64(&s.framesSkipped),
		FramesDropped:     atomic.LoadUint64(&s.framesDropped),
		BytesRead:         atomic.LoadUint64(&s.bytesRead),
		Resolution:        resolution,
		Device:            device,
		IsRunning:         running,
		ErrorsDevice:      atomic.LoadUint64(&s.errorsDevice),
		ErrorsPermission:  atomic.LoadUint64(&s.errorsPermission),
		ErrorsNegotiation: atomic.LoadUint64(&s.errorsNegotiation),
		ErrorsUnknown:     atomic.LoadUint64(&s.errorsUnknown),
	}
}
