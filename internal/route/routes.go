package route

import (
	"net/http"
	"os"
	"path/filepath"

	"camdetect/internal/config"
	"camdetect/internal/handler"
	"camdetect/internal/logger"
	"camdetect/internal/repository"
	"camdetect/internal/service"
)

// staticDir holds the viewer page and its assets.
var staticDir = "static"

// indexHandler serves static/index.html on "/" and 404 on anything else.
func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	filePath := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the page, the viewer websocket and the API endpoints.
// The /api/captures routes are registered only when the capture journal is enabled,
// that is when captureRepo and the manager's capture store are set.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// Viewer
	mux.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(manager.GetWebsocketService(), logger))
	mux.HandleFunc("POST /api/capture", handler.CaptureHandler(manager.GetCaptureController(), logger))
	mux.HandleFunc("GET /api/devices", handler.DevicesHandler(manager.GetEnumerator(), logger))
	mux.HandleFunc("GET /api/detections", handler.DetectionsHandler(manager.GetDetectionLoop(), logger))

	// Capture journal
	if captureRepo != nil && manager.GetCaptureStore() != nil {
		mux.HandleFunc("GET /api/captures", handler.GetCapturesHandler(cfg, logger, captureRepo, detectionRepo))
		if detectionRepo != nil {
			mux.HandleFunc("GET /api/captures/objects", handler.GetObjectNamesHandler(logger, detectionRepo))
		}
		mux.HandleFunc("GET /api/captures/view", handler.ViewCaptureHandler(manager.GetCaptureStore()))
		if detectionRepo != nil {
			mux.HandleFunc("GET /api/captures/{id}/detections", handler.GetCaptureDetectionsHandler(logger, captureRepo, detectionRepo))
		}
		mux.HandleFunc("DELETE /api/captures/{id}", handler.DeleteCaptureHandler(manager.GetCaptureStore(), logger))
		mux.HandleFunc("DELETE /api/captures", handler.ClearCapturesHandler(manager.GetCaptureStore(), logger))
	}

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	mux.HandleFunc("GET /", indexHandler)

	return mux
}
