package framepipeline

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
)

// DefaultFixedHeight is the display height every stream is fitted to
const DefaultFixedHeight = 640

// Rect is a display size anchored at the origin
type Rect struct {
	Width  int
	Height int
}

// String returns the rectangle as "WxH"
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// FitToHeight returns the rectangle of height fixedHeight whose width keeps
// the source aspect ratio, rounded down:
//
//	aspect = srcH / fixedHeight
//	width  = floor(srcW / aspect)
//
// Example: 1280x720 with fixedHeight 640 → 1137x640
func FitToHeight(srcW, srcH, fixedHeight int) Rect {
	aspect := float64(srcH) / float64(fixedHeight)
	return Rect{
		Width:  int(math.Floor(float64(srcW) / aspect)),
		Height: fixedHeight,
	}
}

// ScaleTransform maps source pixel space onto target, scaling each axis
// independently. The result is non-uniform whenever the source aspect
// differs from the target's.
func ScaleTransform(srcW, srcH int, target Rect) f64.Aff3 {
	sx := float64(target.Width) / float64(srcW)
	sy := float64(target.Height) / float64(srcH)
	return f64.Aff3{
		sx, 0, 0,
		0, sy, 0,
	}
}
