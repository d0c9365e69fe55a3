package model

// Device kinds reported by the platform.
const (
	KindVideoInput = "videoinput"
	KindAudioInput = "audioinput"
)

// Device describes one media input device. It is never mutated after enumeration.
// Path is the CAMERA_DEVICE value that opens a video input, empty when unknown.
type Device struct {
	ID    string `json:"deviceId"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
}
