package device

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	// importing the driver package registers the platform cameras
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"

	"camdetect/internal/logger"
	"camdetect/internal/model"
)

// Source lists every media device known to the platform.
type Source interface {
	List(ctx context.Context) ([]model.Device, error)
}

// Enumerator keeps the list of video input devices found at startup.
type Enumerator struct {
	source  Source
	logger  *logger.Logger
	mu      sync.RWMutex
	devices []model.Device
}

// NewEnumerator creates an Enumerator over source.
func NewEnumerator(source Source, logger *logger.Logger) *Enumerator {
	return &Enumerator{
		source:  source,
		logger:  logger,
		devices: []model.Device{},
	}
}

// Enumerate lists the platform devices and stores the video inputs. On failure
// the stored list stays empty and the error is returned; there is no retry.
func (e *Enumerator) Enumerate(ctx context.Context) ([]model.Device, error) {
	all, err := e.source.List(ctx)
	if err != nil {
		e.logger.Warning("Device enumeration failed: %v", err)
		return []model.Device{}, fmt.Errorf("enumerate devices: %w", err)
	}

	video := FilterVideoInputs(all)

	e.mu.Lock()
	e.devices = video
	e.mu.Unlock()

	e.logger.Info("Found %d video input device(s) out of %d", len(video), len(all))
	return e.Devices(), nil
}

// Devices returns a copy of the stored video input devices.
func (e *Enumerator) Devices() []model.Device {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Device, len(e.devices))
	copy(out, e.devices)
	return out
}

// FilterVideoInputs keeps only devices of kind videoinput, preserving order.
func FilterVideoInputs(devices []model.Device) []model.Device {
	out := make([]model.Device, 0, len(devices))
	for _, d := range devices {
		if d.Kind == model.KindVideoInput {
			out = append(out, d)
		}
	}
	return out
}

// MediaDevicesSource enumerates devices through pion/mediadevices.
type MediaDevicesSource struct{}

// NewMediaDevicesSource creates a source over the drivers registered with pion/mediadevices.
func NewMediaDevicesSource() *MediaDevicesSource {
	return &MediaDevicesSource{}
}

// List returns all devices reported by the registered drivers.
func (s *MediaDevicesSource) List(ctx context.Context) (devices []model.Device, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		// drivers may panic when the platform refuses access
		if r := recover(); r != nil {
			devices = nil
			err = fmt.Errorf("platform refused device enumeration: %v", r)
		}
	}()

	infos := mediadevices.EnumerateDevices()
	devices = make([]model.Device, 0, len(infos))
	for _, info := range infos {
		d := model.Device{
			ID:    info.DeviceID,
			Label: info.Label,
			Kind:  kindOf(info.Kind),
		}
		if d.Kind == model.KindVideoInput {
			d.Path = DevicePath(info.Label)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// videoNode matches V4L2 node names such as video0.
var videoNode = regexp.MustCompile(`^video[0-9]+$`)

// DevicePath maps a driver label such as "video0;video0" to the CAMERA_DEVICE
// value that opens the same camera. pion's DeviceID changes on every run and
// cannot be used for that. It returns "" when the label names no device node.
func DevicePath(label string) string {
	for _, part := range strings.Split(label, mediadevicescamera.LabelSeparator) {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "/dev/"):
			return part
		case videoNode.MatchString(part):
			return "/dev/" + part
		}
	}
	return ""
}

func kindOf(kind mediadevices.MediaDeviceType) string {
	switch kind {
	case mediadevices.VideoInput:
		return model.KindVideoInput
	case mediadevices.AudioInput:
		return model.KindAudioInput
	}
	return "unknown"
}
