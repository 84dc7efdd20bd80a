package devicecapture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture/internal/avf"
)

// Sentinel errors for the session contract
var (
	ErrNoInput               = errors.New("device-capture: session has no input")
	ErrInputAlreadyAttached  = errors.New("device-capture: session already has an input")
	ErrOutputAlreadyAttached = errors.New("device-capture: session already has an output")
	ErrDeviceUnavailable     = errors.New("device-capture: device unavailable")
	ErrUnsupportedPlatform   = errors.New("device-capture: device discovery not supported on this platform")
)

// checkElement is replaced in tests to avoid requiring GStreamer plugins
var checkElement = avf.CheckElementAvailable

// DeviceInput binds a Device to a capture session
type DeviceInput struct {
	device Device
}

// NewDeviceInput validates that the device can be opened by the capture graph
//
// Validates at construction time (fail-fast principle):
//   - SourceElement must be set and available in the GStreamer registry
//   - Index must not be negative
func NewDeviceInput(device Device) (*DeviceInput, error) {
	if device.SourceElement == "" {
		return nil, fmt.Errorf("%w: %s has no source element", ErrDeviceUnavailable, device.Name)
	}
	if device.Index < 0 {
		return nil, fmt.Errorf("%w: %s has invalid index %d", ErrDeviceUnavailable, device.Name, device.Index)
	}
	if err := checkElement(device.SourceElement); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &DeviceInput{device: device}, nil
}

// Device returns the device bound to this input
func (in *DeviceInput) Device() Device {
	return in.device
}

// VideoDataOutput delivers captured frames to a FrameSink
type VideoDataOutput struct {
	mu                sync.RWMutex
	sink              FrameSink
	discardLateFrames bool
}

// NewVideoDataOutput returns an output with no sink that discards late frames
func NewVideoDataOutput() *VideoDataOutput {
	return &VideoDataOutput{discardLateFrames: true}
}

// SetSampleBufferDelegate registers the sink that receives every frame
func (o *VideoDataOutput) SetSampleBufferDelegate(sink FrameSink) {
	o.mu.Lock()
	o.sink = sink
	o.mu.Unlock()
}

// SetAlwaysDiscardsLateVideoFrames controls whether frames arriving while
// the sink still holds an unreleased frame are dropped at the source.
// Takes effect on the next start.
func (o *VideoDataOutput) SetAlwaysDiscardsLateVideoFrames(discard bool) {
	o.mu.Lock()
	o.discardLateFrames = discard
	o.mu.Unlock()
}

// AlwaysDiscardsLateVideoFrames reports the late-frame policy
func (o *VideoDataOutput) AlwaysDiscardsLateVideoFrames() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.discardLateFrames
}

func (o *VideoDataOutput) delegate() FrameSink {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sink
}
