package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/repository"
	"camdetect/internal/route"
	"camdetect/internal/service"
	"camdetect/internal/service/ai"
	"camdetect/internal/service/camera"
	"camdetect/internal/service/capture"
	"camdetect/internal/service/detection"
	"camdetect/internal/service/device"
	"camdetect/internal/service/overlay"
	"camdetect/internal/service/storage"
	"camdetect/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	journal    *storage.Journal
	detector   *ai.DetectorService
	camera     *camera.Stream
	loop       *detection.Loop
	hub        *websocket.HubService
	enumerator *device.Enumerator
	manager    *service.Manager
	server     *http.Server
}

// New builds every component. A detector or camera that cannot be opened is fatal.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a = &App{config: cfg, logger: log}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
			a = nil
		}
	}()

	a.journal, err = storage.OpenJournal(cfg, log)
	if err != nil {
		return a, err
	}

	a.detector = ai.NewDetectorService(cfg, log)
	if err := a.detector.Load(ctx); err != nil {
		return a, fmt.Errorf("failed to load detector: %w", err)
	}

	a.camera, err = camera.Open(cfg.CameraDevice, log)
	if err != nil {
		return a, err
	}

	a.loop = detection.NewLoop(a.camera, a.detector, overlay.NewCanvas(), log, detection.Options{
		Interval: cfg.DetectInterval(),
	})
	a.enumerator = device.NewEnumerator(device.NewMediaDevicesSource(), log)
	a.hub = websocket.NewHubService(log)

	// store stays a nil interface while the journal is off
	var (
		store         capture.Store
		captureStore  *storage.CaptureStore
		captureRepo   repository.CaptureRepository
		detectionRepo repository.DetectionRepository
	)
	if a.journal != nil {
		store = a.journal.Store
		captureStore = a.journal.Store
		captureRepo = a.journal.Captures
		detectionRepo = a.journal.Detections
	}
	controller := capture.NewController(a.camera, a.loop, store, log)

	a.manager = service.NewManager(a.camera, a.loop, a.hub, controller, a.enumerator, captureStore, cfg, log)

	a.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           route.SetupRoutes(a.manager, cfg, log, captureRepo, detectionRepo),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts all components and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// enumeration failures leave the device list empty and are not fatal
	g.Go(func() error {
		a.enumerator.Enumerate(ctx)
		return nil
	})

	g.Go(func() error {
		if err := a.camera.Run(ctx); err != nil {
			return fmt.Errorf("camera stream: %w", err)
		}
		return nil
	})
	g.Go(func() error { return a.loop.Run(ctx) })
	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error { return a.manager.Run(ctx) })
	g.Go(func() error {
		a.logger.Info("camdetect listening on http://%s", a.config.Addr())
		a.logger.Info("Camera: %s, model: %s", a.config.CameraDevice, a.config.ModelPath)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the camera, detector, database and logger.
func (a *App) Close() error {
	var err error
	if a.camera != nil {
		err = multierr.Append(err, a.camera.Close())
	}
	if a.detector != nil {
		err = multierr.Append(err, a.detector.Close())
	}
	err = multierr.Append(err, a.journal.Close())
	if a.logger != nil {
		a.logger.Info("camdetect stopped")
		err = multierr.Append(err, a.logger.Close())
	}
	return err
}
