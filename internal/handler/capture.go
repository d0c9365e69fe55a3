package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"camdetect/internal/logger"
	"camdetect/internal/model"
	"camdetect/internal/service/capture"
)

// Capturer takes a capture of the current frame.
type Capturer interface {
	Capture(ctx context.Context) (*capture.Result, error)
}

// CaptureHandler returns the current frame as a PNG download named captured.png.
func CaptureHandler(capturer Capturer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := capturer.Capture(r.Context())
		if err != nil {
			if errors.Is(err, model.ErrNoFrame) {
				http.Error(w, "Camera is not ready", http.StatusServiceUnavailable)
				return
			}
			logger.Error("Capture failed: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
		w.Header().Set("X-Detected-Objects", strconv.Itoa(len(res.Detections)))
		if res.Capture != nil {
			w.Header().Set("X-Capture-Id", res.Capture.ID)
		}
		if _, err := w.Write(res.Data); err != nil {
			logger.Warning("Failed to send capture: %v", err)
		}
	}
}
