package devicecapture

import (
	"context"
	"fmt"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture/internal/avf"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// captureGraph is the running media graph behind a Session
type captureGraph interface {
	// Play starts the graph; deliver is called once per frame on the
	// streaming thread.
	Play(cb *avf.CallbackContext) error
	// SetFlipMethod updates the orientation while playing
	SetFlipMethod(method int) error
	// Monitor blocks until ctx is done (nil) or the graph fails (error)
	Monitor(ctx context.Context, counters *avf.ErrorCounters, metrics *avf.MonitorMetrics) error
	// Destroy releases the graph. Safe to call more than once.
	Destroy() error
}

type graphFactory func(cfg avf.PipelineConfig) (captureGraph, error)

// gstGraph is the GStreamer-backed captureGraph
type gstGraph struct {
	elements *avf.PipelineElements
}

func newGstGraph(cfg avf.PipelineConfig) (captureGraph, error) {
	elements, err := avf.CreatePipeline(cfg)
	if err != nil {
		return nil, err
	}
	return &gstGraph{elements: elements}, nil
}

func (g *gstGraph) Play(cb *avf.CallbackContext) error {
	g.elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return avf.OnNewSample(sink, cb)
		},
	})

	if err := g.elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	return nil
}

func (g *gstGraph) SetFlipMethod(method int) error {
	return avf.SetFlipMethod(g.elements.Flip, method)
}

func (g *gstGraph) Monitor(ctx context.Context, counters *avf.ErrorCounters, metrics *avf.MonitorMetrics) error {
	return avf.MonitorPipelineBus(ctx, g.elements.Pipeline, counters, metrics)
}

func (g *gstGraph) Destroy() error {
	err := avf.DestroyPipeline(g.elements)
	g.elements = nil
	return err
}
