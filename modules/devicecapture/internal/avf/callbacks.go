package avf

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Frame is a minimal frame struct for internal use (avoids import cycle)
// The actual Frame type is defined in the parent package
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Stride    int
	Data      []byte
	TraceID   string
}

// CallbackContext holds state needed by GStreamer callbacks
type CallbackContext struct {
	Deliver       func(Frame) // Called on the streaming thread, in capture order
	FrameCounter  *uint64     // Atomic counter for sequence numbers
	BytesRead     *uint64     // Atomic counter for bytes read
	FramesSkipped *uint64     // Atomic counter for unreadable samples
}

// OnNewSample is called by GStreamer when a new frame is available
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Reads width/height from the negotiated caps
//  3. Copies data (GStreamer will reuse the buffer)
//  4. Hands the frame to ctx.Deliver
//
// Unreadable samples are skipped; the stream keeps flowing.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		atomic.AddUint64(ctx.FramesSkipped, 1)
		slog.Warn("device-capture: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	width, height, ok := sampleDimensions(sample)
	if !ok {
		atomic.AddUint64(ctx.FramesSkipped, 1)
		slog.Warn("device-capture: sample has no usable caps, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		atomic.AddUint64(ctx.FramesSkipped, 1)
		slog.Warn("device-capture: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		atomic.AddUint64(ctx.FramesSkipped, 1)
		slog.Warn("device-capture: empty buffer received")
		return gst.FlowOK
	}

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	seq := atomic.AddUint64(ctx.FrameCounter, 1)
	atomic.AddUint64(ctx.BytesRead, uint64(len(frameData)))

	frame := Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
		Stride:    RowStride(width, len(frameData), height),
		Data:      frameData,
		TraceID:   uuid.New().String(),
	}

	slog.Debug("device-capture: frame delivered",
		"seq", frame.Seq,
		"size_bytes", len(frameData),
		"resolution", width*height,
		"trace_id", frame.TraceID,
	)

	ctx.Deliver(frame)

	return gst.FlowOK
}

func sampleDimensions(sample *gst.Sample) (width, height int, ok bool) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, false
	}

	structure := caps.GetStructureAt(0)
	if structure == nil {
		return 0, 0, false
	}

	w, err := structure.GetValue("width")
	if err != nil {
		return 0, 0, false
	}
	h, err := structure.GetValue("height")
	if err != nil {
		return 0, 0, false
	}

	width, wok := IntValue(w)
	height, hok := IntValue(h)
	if !wok || !hok || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// IntValue converts a caps field value to int
func IntValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

// RowStride returns the bytes per row of an RGBA buffer.
//
// GStreamer pads RGBA rows to 4 bytes, which is always width*4; a buffer
// with extra trailing padding per row is detected from its total size.
func RowStride(width, size, height int) int {
	stride := width * 4
	if height > 0 && size/height > stride {
		stride = size / height
	}
	return stride
}
