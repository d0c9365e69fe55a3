package model

import "time"

// Capture represents a captured still image record.
type Capture struct {
	ID         string      `json:"id"`
	Filename   string      `json:"filename"`
	FilePath   string      `json:"filepath"`
	FileSize   int64       `json:"filesize"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Timestamp  time.Time   `json:"timestamp"`
	Detections []Detection `json:"detections,omitempty"`
}

// CaptureDetection is a detection row stored for a capture.
type CaptureDetection struct {
	ID         int64   `json:"id"`
	CaptureID  string  `json:"capture_id"`
	ObjectName string  `json:"object_name"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}
