package handler

import (
	"net/http"

	"camdetect/internal/logger"
	"camdetect/internal/model"
)

// DeviceLister returns the enumerated video input devices.
type DeviceLister interface {
	Devices() []model.Device
}

// DevicesHandler lists the video input devices found at startup.
func DevicesHandler(devices DeviceLister, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := writeJSON(w, http.StatusOK, devices.Devices()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
