package devicecapture

import (
	"log/slog"
	"sync/atomic"
)

// flipMethod maps an orientation to the videoflip "method" enum.
//
// iOS devices stream in their native portrait layout, so portrait is the
// identity.
func flipMethod(o Orientation) int {
	switch o {
	case OrientationLandscapeRight:
		return 1 // clockwise
	case OrientationPortraitUpsideDown:
		return 2 // rotate-180
	case OrientationLandscapeLeft:
		return 3 // counterclockwise
	default:
		return 0 // none
	}
}

// connection applies orientation changes to the running graph.
// apply is nil until the pipeline exists.
type connection struct {
	orientation atomic.Int32
	apply       func(method int) error
}

func newConnection(initial Orientation, apply func(method int) error) *connection {
	c := &connection{apply: apply}
	c.orientation.Store(int32(initial))
	return c
}

func (c *connection) SetVideoOrientation(o Orientation) {
	old := Orientation(c.orientation.Swap(int32(o)))
	if old == o || c.apply == nil {
		return
	}

	if err := c.apply(flipMethod(o)); err != nil {
		slog.Warn("device-capture: failed to apply orientation",
			"orientation", o.String(),
			"error", err,
		)
		return
	}

	slog.Debug("device-capture: orientation changed", "from", old.String(), "to", o.String())
}

func (c *connection) VideoOrientation() Orientation {
	return Orientation(c.orientation.Load())
}
