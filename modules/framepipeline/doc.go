// Package framepipeline presents captured frames fitted to a fixed height.
//
// The pipeline is a devicecapture.FrameSink. Each frame is handed from the
// capture goroutine to the main serial queue, where it is scaled and drawn:
//
//	CaptureOutput (capture goroutine)
//	  ├─ force orientation on the connection
//	  └─ Dispatch ──▶ present (main queue)
//	                   ├─ wrap RGBA buffer (skip + log if missing/short)
//	                   ├─ first frame only: FitToHeight, resize display
//	                   ├─ scale W×H onto the cached target (per axis)
//	                   └─ display.SetImage
//
// # Geometry
//
// The target rectangle is computed once, from the first frame:
//
//	width = floor(srcW / (srcH / 640)),  height = 640
//
// A 1280x720 stream is shown at 1137x640. Frames of another size arriving
// later are stretched into the same rectangle, so a stream whose aspect
// changes mid-session is shown distorted.
//
// # Threading
//
// The target rectangle is only written from the main queue. Statistics can
// be read from any goroutine.
package framepipeline
