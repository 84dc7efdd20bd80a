package devicecapture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture/internal/avf"
	"github.com/e7canasta/device-camera-monitor/modules/mainqueue"
)

// fakeGraph stands in for the GStreamer graph
type fakeGraph struct {
	mu        sync.Mutex
	cfg       avf.PipelineConfig
	cb        *avf.CallbackContext
	flips     []int
	destroyed int
	playErr   error
	fail      chan error
}

func newFakeGraph(cfg avf.PipelineConfig) *fakeGraph {
	return &fakeGraph{cfg: cfg, fail: make(chan error, 1)}
}

func (g *fakeGraph) Play(cb *avf.CallbackContext) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.playErr != nil {
		return g.playErr
	}
	g.cb = cb
	return nil
}

func (g *fakeGraph) SetFlipMethod(method int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flips = append(g.flips, method)
	return nil
}

func (g *fakeGraph) Monitor(ctx context.Context, counters *avf.ErrorCounters, metrics *avf.MonitorMetrics) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-g.fail:
		counters.Add(avf.ErrCategoryDevice)
		return err
	}
}

func (g *fakeGraph) Destroy() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.destroyed++
	return nil
}

// deliver simulates one sample reaching the appsink callback
func (g *fakeGraph) deliver(seq uint64, w, h int) {
	g.mu.Lock()
	cb := g.cb
	g.mu.Unlock()
	cb.Deliver(avf.Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     w,
		Height:    h,
		Stride:    w * 4,
		Data:      make([]byte, w*h*4),
		TraceID:   "trace",
	})
}

type graphRecorder struct {
	mu     sync.Mutex
	graphs []*fakeGraph
	err    error
}

func (r *graphRecorder) factory(cfg avf.PipelineConfig) (captureGraph, error) {
	if r.err != nil {
		return nil, r.err
	}
	g := newFakeGraph(cfg)
	r.mu.Lock()
	r.graphs = append(r.graphs, g)
	r.mu.Unlock()
	return g, nil
}

func (r *graphRecorder) last() *fakeGraph {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.graphs) == 0 {
		return nil
	}
	return r.graphs[len(r.graphs)-1]
}

var testDevice = Device{
	UniqueID:      "00008110-000A",
	Name:          "iPhone",
	Manufacturer:  "Apple Inc.",
	ModelID:       "iOS Device",
	Index:         2,
	SourceElement: avf.SourceAVFoundation,
}

func newTestSession(t *testing.T, cfg SessionConfig) (*Session, *graphRecorder) {
	t.Helper()
	s := NewSession(cfg)
	rec := &graphRecorder{}
	s.newGraph = rec.factory
	return s, rec
}

func TestSession_SingleInputOutput(t *testing.T) {
	s, _ := newTestSession(t, SessionConfig{})

	in1 := &DeviceInput{device: testDevice}
	in2 := &DeviceInput{device: testDevice}

	if !s.CanAddInput(in1) {
		t.Fatal("CanAddInput() = false on an empty session")
	}
	if err := s.AddInput(in1); err != nil {
		t.Fatalf("AddInput() failed: %v", err)
	}
	if s.CanAddInput(in2) {
		t.Error("CanAddInput() = true with an input attached")
	}
	if err := s.AddInput(in2); !errors.Is(err, ErrInputAlreadyAttached) {
		t.Errorf("second AddInput() error = %v, want ErrInputAlreadyAttached", err)
	}
	if s.CanAddInput(nil) {
		t.Error("CanAddInput(nil) = true")
	}

	out := NewVideoDataOutput()
	if err := s.AddOutput(out); err != nil {
		t.Fatalf("AddOutput() failed: %v", err)
	}
	if s.CanAddOutput(NewVideoDataOutput()) {
		t.Error("CanAddOutput() = true with an output attached")
	}
	if err := s.AddOutput(NewVideoDataOutput()); !errors.Is(err, ErrOutputAlreadyAttached) {
		t.Errorf("second AddOutput() error = %v, want ErrOutputAlreadyAttached", err)
	}

	if len(s.Inputs()) != 1 || len(s.Outputs()) != 1 {
		t.Errorf("Inputs()=%d Outputs()=%d, want 1 each", len(s.Inputs()), len(s.Outputs()))
	}
}

func TestSession_StartWithoutInput(t *testing.T) {
	s, rec := newTestSession(t, SessionConfig{})

	if err := s.StartRunning(); !errors.Is(err, ErrNoInput) {
		t.Errorf("StartRunning() error = %v, want ErrNoInput", err)
	}
	if rec.last() != nil {
		t.Error("graph created without an input")
	}
}

func TestSession_StartStopIdempotent(t *testing.T) {
	s, rec := newTestSession(t, SessionConfig{Orientation: OrientationLandscapeRight})
	if err := s.AddInput(&DeviceInput{device: testDevice}); err != nil {
		t.Fatal(err)
	}

	// Stopping a session that never started is a no-op
	if err := s.StopRunning(); err != nil {
		t.Fatalf("StopRunning() on idle session failed: %v", err)
	}

	if err := s.StartRunning(); err != nil {
		t.Fatalf("StartRunning() failed: %v", err)
	}
	if err := s.StartRunning(); err != nil {
		t.Fatalf("second StartRunning() failed: %v", err)
	}
	if len(rec.graphs) != 1 {
		t.Errorf("created %d graphs, want 1", len(rec.graphs))
	}
	if !s.IsRunning() {
		t.Error("IsRunning() = false after start")
	}

	g := rec.last()
	if g.cfg.DeviceIndex != testDevice.Index || g.cfg.SourceElement != avf.SourceAVFoundation {
		t.Errorf("graph config = %+v", g.cfg)
	}
	if g.cfg.FlipMethod != 1 {
		t.Errorf("FlipMethod = %d, want 1 for landscape-right", g.cfg.FlipMethod)
	}
	if !g.cfg.DiscardLateFrames {
		t.Error("DiscardLateFrames = false without an output, want true")
	}

	if err := s.StopRunning(); err != nil {
		t.Fatalf("StopRunning() failed: %v", err)
	}
	if err := s.StopRunning(); err != nil {
		t.Fatalf("second StopRunning() failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
	if g.destroyed != 1 {
		t.Errorf("graph destroyed %d times, want 1", g.destroyed)
	}
	if s.Connection() != nil {
		t.Error("Connection() non-nil after stop")
	}
}

func TestSession_DeliversFramesToSink(t *testing.T) {
	s, rec := newTestSession(t, SessionConfig{})
	if err := s.AddInput(&DeviceInput{device: testDevice}); err != nil {
		t.Fatal(err)
	}

	var (
		mu     sync.Mutex
		frames []*Frame
		conns  []Connection
	)
	out := NewVideoDataOutput()
	out.SetAlwaysDiscardsLateVideoFrames(false)
	out.SetSampleBufferDelegate(FrameSinkFunc(func(f *Frame, c Connection) {
		mu.Lock()
		defer mu.Unlock()
		frames = append(frames, f)
		conns = append(conns, c)
	}))
	if err := s.AddOutput(out); err != nil {
		t.Fatal(err)
	}

	if err := s.StartRunning(); err != nil {
		t.Fatal(err)
	}
	defer s.StopRunning()

	g := rec.last()
	if g.cfg.DiscardLateFrames {
		t.Error("DiscardLateFrames = true, want the output's setting (false)")
	}

	for i := uint64(1); i <= 3; i++ {
		g.deliver(i, 1280, 720)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 3 {
		t.Fatalf("sink received %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Seq != uint64(i+1) {
			t.Errorf("frame %d has seq %d, want capture order", i, f.Seq)
		}
		if f.DeviceID != testDevice.UniqueID {
			t.Errorf("DeviceID = %q, want %q", f.DeviceID, testDevice.UniqueID)
		}
		if conns[i] == nil || conns[i] != s.Connection() {
			t.Error("sink did not receive the session connection")
		}
	}

	if got := s.Stats().Resolution; got != "1280x720" {
		t.Errorf("Stats().Resolution = %q, want 1280x720", got)
	}
}

func TestSession_ConnectionOrientation(t *testing.T) {
	s, rec := newTestSession(t, SessionConfig{})
	if err := s.AddInput(&DeviceInput{device: testDevice}); err != nil {
		t.Fatal(err)
	}
	if err := s.StartRunning(); err != nil {
		t.Fatal(err)
	}
	defer s.StopRunning()

	conn := s.Connection()
	if conn.VideoOrientation() != OrientationPortrait {
		t.Errorf("initial orientation = %v, want portrait", conn.VideoOrientation())
	}

	// Setting the current orientation does not touch the graph
	conn.SetVideoOrientation(OrientationPortrait)
	conn.SetVideoOrientation(OrientationLandscapeLeft)
	conn.SetVideoOrientation(OrientationLandscapeLeft)
	conn.SetVideoOrientation(OrientationPortrait)

	g := rec.last()
	g.mu.Lock()
	defer g.mu.Unlock()
	want := []int{3, 0}
	if len(g.flips) != len(want) {
		t.Fatalf("flip methods = %v, want %v", g.flips, want)
	}
	for i := range want {
		if g.flips[i] != want[i] {
			t.Errorf("flip methods = %v, want %v", g.flips, want)
			break
		}
	}
}

func TestSession_PlayFailure(t *testing.T) {
	s := NewSession(SessionConfig{})
	var created *fakeGraph
	s.newGraph = func(cfg avf.PipelineConfig) (captureGraph, error) {
		created = newFakeGraph(cfg)
		created.playErr = errors.New("state change failed")
		return created, nil
	}
	if err := s.AddInput(&DeviceInput{device: testDevice}); err != nil {
		t.Fatal(err)
	}

	if err := s.StartRunning(); err == nil {
		t.Fatal("StartRunning() succeeded, want error")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after failed start")
	}
	if created.destroyed != 1 {
		t.Errorf("graph destroyed %d times, want 1", created.destroyed)
	}
}

func TestSession_GraphFailureStopsSession(t *testing.T) {
	s, rec := newTestSession(t, SessionConfig{})
	if err := s.AddInput(&DeviceInput{device: testDevice}); err != nil {
		t.Fatal(err)
	}
	if err := s.StartRunning(); err != nil {
		t.Fatal(err)
	}

	rec.last().fail <- errors.New("device disconnected")

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatal("session still running after graph failure")
	}

	if got := s.Stats().ErrorsDevice; got != 1 {
		t.Errorf("ErrorsDevice = %d, want 1", got)
	}

	// Stop after a failure is a no-op
	if err := s.StopRunning(); err != nil {
		t.Errorf("StopRunning() failed: %v", err)
	}
}

func TestSession_GraphCreationError(t *testing.T) {
	s, rec := newTestSession(t, SessionConfig{})
	rec.err = errors.New("no such element")
	if err := s.AddInput(&DeviceInput{device: testDevice}); err != nil {
		t.Fatal(err)
	}

	if err := s.StartRunning(); err == nil {
		t.Error("StartRunning() succeeded, want error")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true")
	}
}

func TestSession_DiscardsLateFramesWhileSinkBusy(t *testing.T) {
	tests := []struct {
		name        string
		discardLate bool
		wantQueued  int
		wantDropped uint64
	}{
		{"discard late frames", true, 1, 59},
		{"keep late frames", false, 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestSession(t, SessionConfig{})
			if err := s.AddInput(&DeviceInput{device: testDevice}); err != nil {
				t.Fatal(err)
			}

			q := mainqueue.New()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Hold the main context busy until unblock is closed
			unblock := make(chan struct{})
			busy := make(chan struct{})
			q.Dispatch(func() {
				close(busy)
				<-unblock
			})
			done := make(chan struct{})
			go func() {
				q.Run(ctx)
				close(done)
			}()
			<-busy

			var presented atomic.Int64
			out := NewVideoDataOutput()
			out.SetAlwaysDiscardsLateVideoFrames(tt.discardLate)
			out.SetSampleBufferDelegate(FrameSinkFunc(func(f *Frame, c Connection) {
				q.Dispatch(func() {
					f.Release()
					presented.Add(1)
				})
			}))
			if err := s.AddOutput(out); err != nil {
				t.Fatal(err)
			}
			if err := s.StartRunning(); err != nil {
				t.Fatal(err)
			}
			defer s.StopRunning()

			g := rec.last()
			for i := uint64(1); i <= 60; i++ {
				g.deliver(i, 1280, 720)
			}

			if got := q.Len(); got != tt.wantQueued {
				t.Errorf("queued frames = %d, want %d", got, tt.wantQueued)
			}
			if got := s.Stats().FramesDropped; got != tt.wantDropped {
				t.Errorf("FramesDropped = %d, want %d", got, tt.wantDropped)
			}

			// Once the queued frame is presented the next one is accepted
			close(unblock)
			deadline := time.Now().Add(2 * time.Second)
			for presented.Load() < int64(tt.wantQueued) && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			g.deliver(61, 1280, 720)
			for presented.Load() < int64(tt.wantQueued)+1 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			if got := presented.Load(); got != int64(tt.wantQueued)+1 {
				t.Errorf("presented %d frames, want %d", got, tt.wantQueued+1)
			}

			q.Close()
			<-done
		})
	}
}

func TestFrame_ReleaseWithoutSession(t *testing.T) {
	var nilFrame *Frame
	nilFrame.Release()
	(&Frame{}).Release()
}
