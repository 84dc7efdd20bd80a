package avf

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Source element names understood by CreatePipeline
const (
	SourceAVFoundation = "avfvideosrc"
	SourceTestPattern  = "videotestsrc"
)

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	SourceElement     string
	DeviceIndex       int
	FlipMethod        int
	DiscardLateFrames bool
}

// PipelineElements holds references to GStreamer pipeline elements
// These references are needed for orientation updates and cleanup
type PipelineElements struct {
	Pipeline *gst.Pipeline
	AppSink  *app.Sink
	Source   *gst.Element
	Flip     *gst.Element
}

// CreatePipeline creates and configures a GStreamer pipeline for device capture
//
// Pipeline structure:
//
//	avfvideosrc → videoconvert → videoflip → capsfilter(RGBA) → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
// Caller must call pipeline.SetState(gst.StatePlaying) to start.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	flip, err := gst.NewElement("videoflip")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoflip: %w", err)
	}
	flip.SetProperty("method", cfg.FlipMethod)

	// Lock RGBA so the sink can wrap buffers as image.RGBA without conversion
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGBA"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	if cfg.DiscardLateFrames {
		appsink.SetProperty("max-buffers", 1)
		appsink.SetProperty("drop", true)
	}

	if err := pipeline.AddMany(src, converter, flip, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}

	if err := gst.ElementLinkMany(src, converter, flip, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("device-capture: pipeline created",
		"source", cfg.SourceElement,
		"device_index", cfg.DeviceIndex,
		"flip_method", cfg.FlipMethod,
		"discard_late_frames", cfg.DiscardLateFrames,
	)

	return &PipelineElements{
		Pipeline: pipeline,
		AppSink:  appsink,
		Source:   src,
		Flip:     flip,
	}, nil
}

func newSource(cfg PipelineConfig) (*gst.Element, error) {
	switch cfg.SourceElement {
	case SourceAVFoundation:
		src, err := gst.NewElement(SourceAVFoundation)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", SourceAVFoundation, err)
		}
		src.SetProperty("device-index", cfg.DeviceIndex)
		return src, nil

	case SourceTestPattern:
		src, err := gst.NewElement(SourceTestPattern)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", SourceTestPattern, err)
		}
		src.SetProperty("is-live", true)
		return src, nil

	default:
		return nil, fmt.Errorf("unsupported source element %q", cfg.SourceElement)
	}
}

// SetFlipMethod updates the videoflip method on a running pipeline
func SetFlipMethod(flip *gst.Element, method int) error {
	if flip == nil {
		return fmt.Errorf("videoflip is nil")
	}
	return flip.SetProperty("method", method)
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases all resources.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// CheckElementAvailable verifies that a GStreamer element factory exists
func CheckElementAvailable(name string) error {
	gst.Init(nil)

	elem, err := gst.NewElement(name)
	if err != nil {
		return fmt.Errorf("element %q not available: %w", name, err)
	}
	elem.SetState(gst.StateNull)

	return nil
}
