package avf

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		debugStr string
		want     ErrorCategory
	}{
		{
			name:     "camera access denied",
			errMsg:   "Device is not authorized to use camera",
			debugStr: "../sys/applemedia/avfvideosrc.m(471): -[GstAVFVideoSrcImpl openDevice]",
			want:     ErrCategoryPermission,
		},
		{
			name:     "tcc hint in debug string",
			errMsg:   "Failed to open device",
			debugStr: "TCC refused access",
			want:     ErrCategoryPermission,
		},
		{
			name:     "negotiation failure",
			errMsg:   "Internal data stream error.",
			debugStr: "streaming stopped, reason not-negotiated (-4)",
			want:     ErrCategoryNegotiation,
		},
		{
			name:   "unsupported caps",
			errMsg: "Could not find a supported caps structure",
			want:   ErrCategoryNegotiation,
		},
		{
			name:   "device unplugged",
			errMsg: "Device disconnected",
			want:   ErrCategoryDevice,
		},
		{
			name:   "device busy",
			errMsg: "Resource busy",
			want:   ErrCategoryDevice,
		},
		{
			name:   "unclassified",
			errMsg: "Something went wrong",
			want:   ErrCategoryUnknown,
		},
		{
			name: "empty",
			want: ErrCategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyMessage(tt.errMsg, tt.debugStr)
			if got != tt.want {
				t.Errorf("ClassifyMessage(%q, %q) = %v, want %v", tt.errMsg, tt.debugStr, got, tt.want)
			}
		})
	}
}

func TestClassifyGStreamerError_Nil(t *testing.T) {
	if got := ClassifyGStreamerError(nil); got != ErrCategoryUnknown {
		t.Errorf("ClassifyGStreamerError(nil) = %v, want unknown", got)
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     string
	}{
		{ErrCategoryDevice, "device"},
		{ErrCategoryPermission, "permission"},
		{ErrCategoryNegotiation, "negotiation"},
		{ErrCategoryUnknown, "unknown"},
		{ErrorCategory(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", int(tt.category), got, tt.want)
		}
	}
}

func TestErrorCounters_Add(t *testing.T) {
	var device, permission, negotiation, unknown uint64
	c := &ErrorCounters{
		Device:      &device,
		Permission:  &permission,
		Negotiation: &negotiation,
		Unknown:     &unknown,
	}

	c.Add(ErrCategoryDevice)
	c.Add(ErrCategoryDevice)
	c.Add(ErrCategoryPermission)
	c.Add(ErrCategoryNegotiation)
	c.Add(ErrorCategory(99))

	if got := atomic.LoadUint64(&device); got != 2 {
		t.Errorf("device = %d, want 2", got)
	}
	if permission != 1 || negotiation != 1 || unknown != 1 {
		t.Errorf("permission=%d negotiation=%d unknown=%d, want 1 each", permission, negotiation, unknown)
	}
}

func TestCategoryHint(t *testing.T) {
	for _, c := range []ErrorCategory{ErrCategoryDevice, ErrCategoryPermission, ErrCategoryNegotiation} {
		if categoryHint(c) == "" {
			t.Errorf("categoryHint(%s) is empty", c)
		}
	}
	if got := categoryHint(ErrCategoryUnknown); got != "" {
		t.Errorf("categoryHint(unknown) = %q, want empty", got)
	}
}

func TestMonitorPipelineBus_NilPipeline(t *testing.T) {
	err := MonitorPipelineBus(context.Background(), nil, &ErrorCounters{}, &MonitorMetrics{})
	if err == nil || errors.Is(err, ErrSourceEnded) {
		t.Errorf("MonitorPipelineBus(nil) error = %v, want a setup error", err)
	}
}
