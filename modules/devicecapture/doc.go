// Package devicecapture provides video capture from externally connected
// iOS devices using GStreamer.
//
// An iOS device attached over USB shows up as a capture device once the
// process opts in through CoreMediaIO. Discovery finds such devices, a
// Session attaches one of them as its input and streams RGBA frames to the
// FrameSink registered on its VideoDataOutput.
//
// # Quick Start
//
//	discovery := devicecapture.NewDiscovery(devicecapture.DiscoveryConfig{})
//	if err := discovery.EnableExternalDevices(); err != nil {
//	    log.Fatal(err)
//	}
//
//	devices, _ := discovery.Devices()
//	device, ok := devicecapture.FirstMatching(devices, devicecapture.DeviceFilter{
//	    Manufacturer: "Apple Inc.",
//	    ModelID:      "iOS Device",
//	})
//	if !ok {
//	    // wait on discovery.Watch(ctx, devices)
//	}
//
//	input, err := devicecapture.NewDeviceInput(device)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := devicecapture.NewSession(devicecapture.SessionConfig{})
//	output := devicecapture.NewVideoDataOutput()
//	output.SetSampleBufferDelegate(devicecapture.FrameSinkFunc(
//	    func(frame *devicecapture.Frame, conn devicecapture.Connection) {
//	        // frame.Data holds frame.Height rows of frame.Stride RGBA bytes
//	    }))
//
//	session.AddInput(input)
//	session.AddOutput(output)
//	session.StartRunning()
//	defer session.StopRunning()
//
// # Pipeline
//
//	avfvideosrc → videoconvert → videoflip → capsfilter(RGBA) → appsink
//
// The videoflip method follows the Connection's orientation and can be
// changed per frame. With AlwaysDiscardsLateVideoFrames set the appsink
// keeps a single buffer and drops older ones, so a slow sink never builds
// a backlog.
//
// # Threading
//
// FrameSink.CaptureOutput runs on GStreamer's streaming thread. Sinks that
// touch UI state must hand the frame to their own serial context.
package devicecapture
