// Package fps measures presentation rate over a sliding window of frames.
package fps

import (
	"math"
	"sync"
	"time"
)

const (
	// stabilityThreshold is the maximum allowed FPS standard deviation as a
	// fraction of mean FPS. 30 FPS mean → stable if stddev < 4.5 FPS
	stabilityThreshold = 0.15

	// DefaultWindowSize holds roughly four seconds at 30 FPS
	DefaultWindowSize = 120
)

// Stats contains rate statistics for a run of frame timestamps
type Stats struct {
	Frames     int
	FPSMean    float64
	FPSStdDev  float64
	FPSMin     float64
	FPSMax     float64
	JitterMean float64 // Mean deviation from the expected interval, seconds
	IsStable   bool    // stddev < 15% of mean
}

// Calculate computes rate statistics from ordered frame timestamps.
//
// Mean FPS is taken over the span between the first and last timestamp;
// min/max/stddev come from instantaneous (1/interval) rates.
func Calculate(frameTimes []time.Time) Stats {
	n := len(frameTimes)
	if n < 2 {
		return Stats{Frames: n}
	}

	span := frameTimes[n-1].Sub(frameTimes[0]).Seconds()
	if span <= 0 {
		return Stats{Frames: n}
	}
	fpsMean := float64(n-1) / span

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return Stats{Frames: n, FPSMean: fpsMean}
	}

	fpsMin, fpsMax := instantaneous[0], instantaneous[0]
	var sumSquares float64
	for _, f := range instantaneous {
		fpsMin = math.Min(fpsMin, f)
		fpsMax = math.Max(fpsMax, f)
		diff := f - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(len(instantaneous)))

	expectedInterval := 1.0 / fpsMean
	var jitterSum float64
	for i := 1; i < n; i++ {
		jitterSum += math.Abs(frameTimes[i].Sub(frameTimes[i-1]).Seconds() - expectedInterval)
	}

	return Stats{
		Frames:     n,
		FPSMean:    fpsMean,
		FPSStdDev:  fpsStdDev,
		FPSMin:     fpsMin,
		FPSMax:     fpsMax,
		JitterMean: jitterSum / float64(n-1),
		IsStable:   fpsStdDev < fpsMean*stabilityThreshold,
	}
}

// Window is a fixed-size ring of frame timestamps, safe for concurrent use
type Window struct {
	mu      sync.Mutex
	samples []time.Time
	next    int
	count   int
}

// NewWindow returns a window holding the last size timestamps
func NewWindow(size int) *Window {
	if size < 2 {
		size = DefaultWindowSize
	}
	return &Window{samples: make([]time.Time, size)}
}

// Add records a frame timestamp
func (w *Window) Add(t time.Time) {
	w.mu.Lock()
	w.samples[w.next] = t
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
	w.mu.Unlock()
}

// Stats returns statistics over the timestamps currently held
func (w *Window) Stats() Stats {
	w.mu.Lock()
	ordered := make([]time.Time, 0, w.count)
	start := (w.next - w.count + len(w.samples)) % len(w.samples)
	for i := 0; i < w.count; i++ {
		ordered = append(ordered, w.samples[(start+i)%len(w.samples)])
	}
	w.mu.Unlock()

	return Calculate(ordered)
}
