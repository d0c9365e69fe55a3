package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"camdetect/internal/config"
	"camdetect/internal/dto"
	"camdetect/internal/logger"
	"camdetect/internal/model"
	"camdetect/internal/repository"
)

// CaptureFiles resolves and removes stored capture files.
type CaptureFiles interface {
	Directory() string
	Path(filename string) (string, error)
	Delete(id string) error
	Clear() (int, error)
}

// GetCapturesHandler returns a filtered, paginated list of stored captures.
func GetCapturesHandler(cfg *config.Config, logger *logger.Logger,
	captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)
		if cfg.MaxCapturesPageSize > 0 && limit > cfg.MaxCapturesPageSize {
			limit = cfg.MaxCapturesPageSize
		}

		filter := &dto.CaptureFilters{
			Object:     q.Get("object"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		captures, err := captureRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying captures from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := captureRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting captures: %v", err)
			totalCount = len(captures)
		}

		infos := make([]dto.CaptureInfo, 0, len(captures))
		for _, c := range captures {
			objects := []string{}
			if detectionRepo != nil {
				names, err := detectionRepo.GetObjectNamesByCaptureID(c.ID)
				if err != nil {
					logger.Error("Error getting objects for capture %s: %v", c.ID, err)
				} else if names != nil {
					objects = names
				}
			}

			infos = append(infos, dto.CaptureInfo{
				ID:        c.ID,
				Name:      c.Filename,
				Date:      c.Timestamp,
				TimeOfDay: c.Timestamp,
				Objects:   objects,
				Size:      c.FileSize,
			})
		}

		data := dto.CapturesData{
			Captures:    infos,
			CaptureDir:  cfg.CaptureDirectory,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		if err := writeJSON(w, http.StatusOK, data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// GetObjectNamesHandler lists every object label recorded with a capture.
func GetObjectNamesHandler(logger *logger.Logger, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := detectionRepo.GetAllObjectNames()
		if err != nil {
			logger.Error("Error querying object names: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, names)
	}
}

// GetCaptureDetectionsHandler returns the detections recorded with one capture.
func GetCaptureDetectionsHandler(logger *logger.Logger,
	captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		capture, err := captureRepo.GetByID(id)
		if err != nil {
			logger.Error("Error querying capture %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if capture == nil {
			http.Error(w, "Capture not found", http.StatusNotFound)
			return
		}

		detections, err := detectionRepo.GetByCaptureID(id)
		if err != nil {
			logger.Error("Error querying detections of capture %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if detections == nil {
			detections = []model.CaptureDetection{}
		}
		writeJSON(w, http.StatusOK, detections)
	}
}

// ViewCaptureHandler serves one stored capture named by the "name" query parameter.
func ViewCaptureHandler(files CaptureFiles) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := files.Path(r.URL.Query().Get("name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, path)
	}
}

// DeleteCaptureHandler removes a capture from disk and from the journal.
func DeleteCaptureHandler(files CaptureFiles, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			http.Error(w, "Capture id required", http.StatusBadRequest)
			return
		}

		if err := files.Delete(id); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				http.Error(w, "Capture not found", http.StatusNotFound)
				return
			}
			logger.Error("Failed to delete capture %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted capture: %s", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	}
}

// ClearCapturesHandler removes every capture from disk and from the journal.
func ClearCapturesHandler(files CaptureFiles, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := files.Clear()
		if err != nil {
			logger.Error("Failed to clear captures: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cleared", "removed": removed})
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date in the HTML input format "2006-01-02".
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
