package dto

import (
	"encoding/json"
	"time"
)

// CaptureInfo is the listing entry for one stored capture.
type CaptureInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Objects   []string  `json:"objects"`
	Size      int64     `json:"size"`
}

// MarshalJSON customizes JSON output for CaptureInfo to format date and time-of-day.
func (p CaptureInfo) MarshalJSON() ([]byte, error) {
	type Alias CaptureInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(p),
	})
}
