package model

import (
	"errors"
	"time"
)

// Frame is one JPEG-encoded video frame read from the camera.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Data   []byte
	At     time.Time
}

// Valid reports whether the frame carries real dimensions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) > 0
}

// ErrNoFrame is returned when no frame has been read yet.
var ErrNoFrame = errors.New("no frame available")
