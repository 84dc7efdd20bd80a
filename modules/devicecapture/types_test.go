package devicecapture

import (
	"errors"
	"strings"
	"testing"
)

func TestParseOrientation(t *testing.T) {
	tests := []struct {
		in      string
		want    Orientation
		wantErr bool
	}{
		{"", OrientationPortrait, false},
		{"portrait", OrientationPortrait, false},
		{"portrait-upside-down", OrientationPortraitUpsideDown, false},
		{"landscape-right", OrientationLandscapeRight, false},
		{"landscape-left", OrientationLandscapeLeft, false},
		{"sideways", OrientationPortrait, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrientation(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOrientation(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOrientation(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOrientation_RoundTrip(t *testing.T) {
	for _, o := range []Orientation{
		OrientationPortrait,
		OrientationPortraitUpsideDown,
		OrientationLandscapeRight,
		OrientationLandscapeLeft,
	} {
		got, err := ParseOrientation(o.String())
		if err != nil || got != o {
			t.Errorf("ParseOrientation(%q) = %v, %v", o.String(), got, err)
		}
	}

	if s := Orientation(9).String(); s != "orientation(9)" {
		t.Errorf("String() = %q, want orientation(9)", s)
	}
}

func TestFlipMethod(t *testing.T) {
	tests := []struct {
		o    Orientation
		want int
	}{
		{OrientationPortrait, 0},
		{OrientationLandscapeRight, 1},
		{OrientationPortraitUpsideDown, 2},
		{OrientationLandscapeLeft, 3},
		{Orientation(9), 0},
	}

	for _, tt := range tests {
		if got := flipMethod(tt.o); got != tt.want {
			t.Errorf("flipMethod(%v) = %d, want %d", tt.o, got, tt.want)
		}
	}
}

func TestConnection_WithoutGraph(t *testing.T) {
	c := newConnection(OrientationLandscapeLeft, nil)
	c.SetVideoOrientation(OrientationPortrait)
	if c.VideoOrientation() != OrientationPortrait {
		t.Errorf("VideoOrientation() = %v, want portrait", c.VideoOrientation())
	}
}

func TestDevice_String(t *testing.T) {
	s := testDevice.String()
	for _, part := range []string{"iPhone", "Apple Inc.", "iOS Device", "index=2"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestNewDeviceInput(t *testing.T) {
	orig := checkElement
	defer func() { checkElement = orig }()

	available := map[string]bool{"avfvideosrc": true, "videotestsrc": true}
	checkElement = func(name string) error {
		if !available[name] {
			return errors.New("element " + name + " not found")
		}
		return nil
	}

	tests := []struct {
		name    string
		device  Device
		wantErr bool
	}{
		{"avfoundation device", testDevice, false},
		{"test pattern", TestPatternDevice, false},
		{"no source element", Device{Name: "x"}, true},
		{"negative index", Device{Name: "x", SourceElement: "avfvideosrc", Index: -1}, true},
		{"missing plugin", Device{Name: "x", SourceElement: "v4l2src"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := NewDeviceInput(tt.device)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewDeviceInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrDeviceUnavailable) {
					t.Errorf("error %v does not wrap ErrDeviceUnavailable", err)
				}
				return
			}
			if in.Device().UniqueID != tt.device.UniqueID {
				t.Errorf("Device() = %v, want %v", in.Device(), tt.device)
			}
		})
	}
}

func TestVideoDataOutput_Defaults(t *testing.T) {
	out := NewVideoDataOutput()
	if !out.AlwaysDiscardsLateVideoFrames() {
		t.Error("new output should discard late frames")
	}
	if out.delegate() != nil {
		t.Error("new output has a delegate")
	}

	out.SetAlwaysDiscardsLateVideoFrames(false)
	if out.AlwaysDiscardsLateVideoFrames() {
		t.Error("SetAlwaysDiscardsLateVideoFrames(false) not applied")
	}
}
