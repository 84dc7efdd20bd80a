package framepipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture"
	"golang.org/x/image/draw"
)

// Errors returned for frames that cannot be presented
var (
	ErrMissingBuffer = errors.New("frame-pipeline: frame has no pixel buffer")
	ErrInvalidFrame  = errors.New("frame-pipeline: invalid frame geometry")
)

// Interpolation names accepted by ParseInterpolation
const (
	InterpolationNearest        = "nearest"
	InterpolationApproxBiLinear = "approx-bilinear"
	InterpolationBiLinear       = "bilinear"
	InterpolationCatmullRom     = "catmull-rom"
)

// ParseInterpolation returns the interpolator for name.
// An empty name selects approx-bilinear.
func ParseInterpolation(name string) (draw.Interpolator, error) {
	switch name {
	case InterpolationApproxBiLinear, "":
		return draw.ApproxBiLinear, nil
	case InterpolationNearest:
		return draw.NearestNeighbor, nil
	case InterpolationBiLinear:
		return draw.BiLinear, nil
	case InterpolationCatmullRom:
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("frame-pipeline: unknown interpolation %q", name)
	}
}

// frameImage wraps the frame's RGBA pixels without copying
func frameImage(frame *devicecapture.Frame) (*image.RGBA, error) {
	if frame == nil || frame.Data == nil {
		return nil, ErrMissingBuffer
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, frame.Width, frame.Height)
	}

	stride := frame.Stride
	if stride == 0 {
		stride = frame.Width * 4
	}
	if stride < frame.Width*4 {
		return nil, fmt.Errorf("%w: stride %d too small for width %d", ErrInvalidFrame, stride, frame.Width)
	}

	need := stride*(frame.Height-1) + frame.Width*4
	if len(frame.Data) < need {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidFrame, len(frame.Data), need)
	}

	return &image.RGBA{
		Pix:    frame.Data,
		Stride: stride,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}, nil
}

// render applies the scale transform to src and rasterizes the region
// bounded by target into a new image.
func render(src *image.RGBA, target Rect, interp draw.Interpolator) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	m := ScaleTransform(src.Rect.Dx(), src.Rect.Dy(), target)
	interp.Transform(dst, m, src, src.Bounds(), draw.Src, nil)
	return dst
}
