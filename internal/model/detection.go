package model

import "fmt"

// Box is a bounding box in pixel coordinates of the source frame.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection is one object-recognition result.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// String formats the box the same way capture logs print it.
func (b Box) String() string {
	return fmt.Sprintf("[%d %d %d %d]", b.X, b.Y, b.Width, b.Height)
}

// CloneDetections returns a copy that does not share the backing array.
func CloneDetections(in []Detection) []Detection {
	if in == nil {
		return nil
	}
	out := make([]Detection, len(in))
	copy(out, in)
	return out
}
