//go:build !darwin

package devicecapture

func enableScreenCaptureDevices() error {
	return ErrUnsupportedPlatform
}

// listExternalDevices reports no devices: iOS capture devices are only
// exposed through CoreMediaIO.
func listExternalDevices() ([]Device, error) {
	return nil, nil
}

// observeDeviceNotifications is nil: Watch polls instead
var observeDeviceNotifications func(notify func()) (func(), error)
