package main

import (
	"context"
	"fmt"
	"time"

	"github.com/e7canasta/device-camera-monitor/modules/acquisition"
	"github.com/e7canasta/device-camera-monitor/modules/devicecapture"
	"github.com/e7canasta/device-camera-monitor/modules/framepipeline"
)

// reportStats periodically prints statistics from all components
func reportStats(
	ctx context.Context,
	interval time.Duration,
	session *devicecapture.Session,
	pipeline *framepipeline.Pipeline,
	acq *acquisition.Acquirer,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printStats(fmt.Sprintf("Monitor Statistics (Uptime: %v)", time.Since(startTime).Round(time.Second)),
				session, pipeline, acq)
		}
	}
}

// printFinalStats prints statistics at shutdown
func printFinalStats(session *devicecapture.Session, pipeline *framepipeline.Pipeline, acq *acquisition.Acquirer) {
	printStats("Final Statistics", session, pipeline, acq)
}

func printStats(title string, session *devicecapture.Session, pipeline *framepipeline.Pipeline, acq *acquisition.Acquirer) {
	captureStats := session.Stats()
	pipelineStats := pipeline.Stats()
	acqStats := acq.Stats()

	fmt.Println()
	fmt.Println("╭─────────────────────────────────────────────────────────────────╮")
	fmt.Printf("│ %s\n", title)
	fmt.Println("├─────────────────────────────────────────────────────────────────┤")

	// Acquisition
	fmt.Println("│ Acquisition:")
	device := acqStats.Device
	if device == "" {
		device = "(waiting)"
	}
	fmt.Printf("│   Device:             %s\n", device)
	fmt.Printf("│   Connect Events:     %6d\n", acqStats.ConnectEvents)
	fmt.Printf("│   Input Failures:     %6d\n", acqStats.InputFailures)
	fmt.Printf("│   Subscribed:         %6v\n", acqStats.Subscribed)

	// Capture session
	fmt.Println("│")
	fmt.Println("│ Device Capture:")
	fmt.Printf("│   Running:            %6v\n", captureStats.IsRunning)
	fmt.Printf("│   Frames Captured:    %6d frames\n", captureStats.FrameCount)
	fmt.Printf("│   Samples Skipped:    %6d\n", captureStats.FramesSkipped)
	fmt.Printf("│   Late Dropped:       %6d\n", captureStats.FramesDropped)
	fmt.Printf("│   Data Read:          %6.1f MB\n", float64(captureStats.BytesRead)/(1024*1024))
	if captureStats.Resolution != "" {
		fmt.Printf("│   Resolution:         %s\n", captureStats.Resolution)
	}
	busErrors := captureStats.ErrorsDevice + captureStats.ErrorsPermission +
		captureStats.ErrorsNegotiation + captureStats.ErrorsUnknown
	if busErrors > 0 {
		fmt.Printf("│   Errors:             device=%d permission=%d negotiation=%d unknown=%d\n",
			captureStats.ErrorsDevice,
			captureStats.ErrorsPermission,
			captureStats.ErrorsNegotiation,
			captureStats.ErrorsUnknown)
	}

	// Frame pipeline
	fmt.Println("│")
	fmt.Println("│ Frame Pipeline:")
	if pipelineStats.Target.Height > 0 {
		fmt.Printf("│   Target:             %s\n", pipelineStats.Target)
	}
	fmt.Printf("│   Frames Presented:   %6d frames\n", pipelineStats.FramesPresented)
	fmt.Printf("│   Frames Skipped:     %6d (bad buffer)\n", pipelineStats.FramesSkipped)
	var backlog uint64
	if done := pipelineStats.FramesPresented + pipelineStats.FramesSkipped; pipelineStats.FramesDispatched > done {
		backlog = pipelineStats.FramesDispatched - done
	}
	fmt.Printf("│   Queue Backlog:      %6d\n", backlog)
	fmt.Printf("│   Display FPS:        %6.2f fps (stddev %.2f, stable=%v)\n",
		pipelineStats.FPS.FPSMean,
		pipelineStats.FPS.FPSStdDev,
		pipelineStats.FPS.IsStable)
	fmt.Printf("│   Present Latency:    %6d ms\n", pipelineStats.LastPresentLatency.Milliseconds())

	fmt.Println("╰─────────────────────────────────────────────────────────────────╯")
	fmt.Println()
}
