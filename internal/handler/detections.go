package handler

import (
	"net/http"
	"time"

	"camdetect/internal/logger"
	"camdetect/internal/model"
	"camdetect/internal/service/detection"
)

// DetectionState exposes the detection loop state.
type DetectionState interface {
	Latest() detection.Result
	Stats() detection.Stats
}

type detectionsResponse struct {
	Seq        uint64            `json:"seq"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	At         *time.Time        `json:"at,omitempty"`
	Detections []model.Detection `json:"detections"`
	Stats      detection.Stats   `json:"stats"`
}

// DetectionsHandler returns the latest successful detections and loop counters.
func DetectionsHandler(state DetectionState, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest := state.Latest()
		resp := detectionsResponse{
			Seq:        latest.Seq,
			Width:      latest.Width,
			Height:     latest.Height,
			Detections: latest.Detections,
			Stats:      state.Stats(),
		}
		if resp.Detections == nil {
			resp.Detections = []model.Detection{}
		}
		if !latest.At.IsZero() {
			resp.At = &latest.At
		}
		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
