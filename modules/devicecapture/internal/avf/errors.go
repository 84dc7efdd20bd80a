package avf

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryDevice indicates the capture device went away or is busy
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryPermission indicates camera access was not authorized
	ErrCategoryPermission
	// ErrCategoryNegotiation indicates caps/format negotiation failures
	ErrCategoryNegotiation
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryNegotiation:
		return "negotiation"
	default:
		return "unknown"
	}
}

// ClassifyGStreamerError analyzes a GStreamer error and categorizes it for telemetry
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyMessage(gerr.Error(), gerr.DebugString())
}

// ClassifyMessage categorizes an error from its message and debug strings.
//
// Classification is keyword based: go-gst's GError does not expose Domain().
// Permission is checked first because AVFoundation reports it as a device
// failure with an authorization hint in the debug string.
func ClassifyMessage(errMsg, debugStr string) ErrorCategory {
	combined := strings.ToLower(errMsg + " " + debugStr)

	switch {
	case containsAny(combined, permissionKeywords):
		return ErrCategoryPermission
	case containsAny(combined, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(combined, deviceKeywords):
		return ErrCategoryDevice
	default:
		return ErrCategoryUnknown
	}
}

var permissionKeywords = []string{
	"not authorized",
	"authorization",
	"permission",
	"denied",
	"tcc",
}

var negotiationKeywords = []string{
	"not-negotiated",
	"not negotiated",
	"negotiation",
	"caps",
	"format",
}

var deviceKeywords = []string{
	"device",
	"disconnected",
	"busy",
	"not found",
	"no such",
	"resource",
	"avfvideosrc",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
