package devicecapture

import (
	"fmt"
	"time"
)

// Frame represents a single video frame delivered by a capture session
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame left the capture graph
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Stride is the number of bytes per pixel row
	Stride int
	// Data contains the frame pixels (RGBA, 8 bits per channel)
	Data []byte
	// DeviceID identifies the device that produced the frame
	DeviceID string
	// TraceID is a unique identifier for tracing a frame through the pipeline
	TraceID string

	// release frees the session's in-flight slot, nil when late frames are kept
	release func()
}

// Release tells the capture session the sink has taken the frame off its
// queue, so the next frame is no longer late. Safe to call more than once,
// and on frames that did not come from a session.
func (f *Frame) Release() {
	if f == nil || f.release == nil {
		return
	}
	f.release()
}

// Orientation is the display orientation applied to frames of a connection
type Orientation int

const (
	// OrientationPortrait leaves frames in the device's native portrait layout
	OrientationPortrait Orientation = iota
	// OrientationPortraitUpsideDown rotates frames by 180 degrees
	OrientationPortraitUpsideDown
	// OrientationLandscapeRight rotates frames 90 degrees clockwise
	OrientationLandscapeRight
	// OrientationLandscapeLeft rotates frames 90 degrees counterclockwise
	OrientationLandscapeLeft
)

// String returns a human-readable string representation of the orientation
func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationPortraitUpsideDown:
		return "portrait-upside-down"
	case OrientationLandscapeRight:
		return "landscape-right"
	case OrientationLandscapeLeft:
		return "landscape-left"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// ParseOrientation parses the names returned by Orientation.String
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "portrait", "":
		return OrientationPortrait, nil
	case "portrait-upside-down":
		return OrientationPortraitUpsideDown, nil
	case "landscape-right":
		return OrientationLandscapeRight, nil
	case "landscape-left":
		return OrientationLandscapeLeft, nil
	default:
		return OrientationPortrait, fmt.Errorf("device-capture: unknown orientation %q", s)
	}
}

// Device describes a capture device visible to the enumerator
type Device struct {
	// UniqueID is the platform's stable identifier for the device
	UniqueID string
	// Name is the localized display name
	Name string
	// Manufacturer as reported by the platform (e.g., "Apple Inc.")
	Manufacturer string
	// ModelID as reported by the platform (e.g., "iOS Device")
	ModelID string
	// Index is the device position understood by the source element
	Index int
	// SourceElement is the GStreamer element that reads this device
	SourceElement string
}

// String implements fmt.Stringer for log output
func (d Device) String() string {
	return fmt.Sprintf("%s [%s %s, id=%s, index=%d]", d.Name, d.Manufacturer, d.ModelID, d.UniqueID, d.Index)
}

// Connection is the metadata handed to the frame sink alongside each frame
type Connection interface {
	// SetVideoOrientation changes the orientation applied to frames.
	// Setting the current orientation again is a no-op.
	SetVideoOrientation(o Orientation)
	// VideoOrientation returns the orientation currently applied
	VideoOrientation() Orientation
}

// FrameSink receives captured frames.
//
// CaptureOutput is called from the capture graph's streaming goroutine,
// never from the main queue. Frames arrive in capture order. When the
// output discards late frames, no further frame is delivered until the
// sink calls Release on the one it holds.
type FrameSink interface {
	CaptureOutput(frame *Frame, conn Connection)
}

// FrameSinkFunc adapts a function to the FrameSink interface
type FrameSinkFunc func(frame *Frame, conn Connection)

// CaptureOutput calls f(frame, conn)
func (f FrameSinkFunc) CaptureOutput(frame *Frame, conn Connection) {
	f(frame, conn)
}

// SessionStats contains current capture session statistics
type SessionStats struct {
	// FrameCount is the total number of frames delivered to the sink
	FrameCount uint64
	// FramesSkipped is the number of samples that could not be read
	FramesSkipped uint64
	// FramesDropped is the number of late frames discarded while the sink
	// still held the previous one
	FramesDropped uint64
	// BytesRead is the total number of pixel bytes delivered
	BytesRead uint64
	// Resolution is the resolution of the last delivered frame (e.g., "1280x720")
	Resolution string
	// Device is the attached device name, empty if none
	Device string
	// IsRunning indicates if the session is currently streaming
	IsRunning bool
	// ErrorsDevice counts device errors (busy, disconnected, not found)
	ErrorsDevice uint64
	// ErrorsPermission counts authorization errors
	ErrorsPermission uint64
	// ErrorsNegotiation counts caps/format negotiation errors
	ErrorsNegotiation uint64
	// ErrorsUnknown counts unclassified errors
	ErrorsUnknown uint64
}
