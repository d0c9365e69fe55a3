package device

import (
	"context"
	"errors"
	"testing"

	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/model"
)

type fakeSource struct {
	devices []model.Device
	err     error
	calls   int
}

func (s *fakeSource) List(ctx context.Context) ([]model.Device, error) {
	s.calls++
	return s.devices, s.err
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "info"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

var allDevices = []model.Device{
	{ID: "cam-1", Label: "Integrated Camera", Kind: model.KindVideoInput},
	{ID: "mic-1", Label: "Built-in Microphone", Kind: model.KindAudioInput},
	{ID: "cam-2", Label: "USB Webcam", Kind: model.KindVideoInput},
	{ID: "mic-2", Label: "Headset", Kind: model.KindAudioInput},
}

func TestFilterVideoInputs(t *testing.T) {
	tests := []struct {
		name     string
		input    []model.Device
		expected []string
	}{
		{"mixed", allDevices, []string{"cam-1", "cam-2"}},
		{"audio only", allDevices[1:2], []string{}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterVideoInputs(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d devices, got %+v", len(tt.expected), got)
			}
			for i, id := range tt.expected {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %s, expected %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestEnumerate_StoresVideoInputsSubset(t *testing.T) {
	source := &fakeSource{devices: allDevices}
	e := NewEnumerator(source, newTestLogger(t))

	got, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	all := make(map[string]model.Device)
	for _, d := range allDevices {
		all[d.ID] = d
	}
	for _, d := range got {
		if d.Kind != model.KindVideoInput {
			t.Errorf("device %s has kind %s", d.ID, d.Kind)
		}
		if orig, ok := all[d.ID]; !ok || orig != d {
			t.Errorf("device %+v is not one of the enumerated devices", d)
		}
	}
	if len(e.Devices()) != 2 {
		t.Errorf("Devices() = %+v", e.Devices())
	}
}

func TestEnumerate_FailureLeavesListEmpty(t *testing.T) {
	boom := errors.New("permission denied")
	source := &fakeSource{err: boom}
	e := NewEnumerator(source, newTestLogger(t))

	got, err := e.Enumerate(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Enumerate() error = %v, expected %v", err, boom)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Enumerate() devices = %#v, expected empty list", got)
	}
	if len(e.Devices()) != 0 {
		t.Errorf("Devices() = %+v, expected empty", e.Devices())
	}
	if source.calls != 1 {
		t.Errorf("source called %d times, expected no retry", source.calls)
	}
}

func TestDevices_ReturnsCopy(t *testing.T) {
	e := NewEnumerator(&fakeSource{devices: allDevices}, newTestLogger(t))
	if _, err := e.Enumerate(context.Background()); err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}

	devices := e.Devices()
	devices[0].Label = "changed"

	if e.Devices()[0].Label != "Integrated Camera" {
		t.Error("Devices() exposes internal state")
	}
}

func TestDevicePath(t *testing.T) {
	tests := []struct {
		label    string
		expected string
	}{
		{"video0;video0", "/dev/video0"},
		{"video2", "/dev/video2"},
		{"usb-Logitech_C920-video-index0;video1", "/dev/video1"},
		{"/dev/video4;video4", "/dev/video4"},
		{"FaceTime HD Camera", ""},
		{"videocam;video", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := DevicePath(tt.label); got != tt.expected {
				t.Errorf("DevicePath(%q) = %q, expected %q", tt.label, got, tt.expected)
			}
		})
	}
}
