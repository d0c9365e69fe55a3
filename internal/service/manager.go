package service

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/model"
	"camdetect/internal/service/capture"
	"camdetect/internal/service/detection"
	"camdetect/internal/service/device"
	"camdetect/internal/service/storage"
	"camdetect/internal/service/websocket"
)

// Manager ties the running services together and forwards frames and
// detection results to the viewers.
type Manager struct {
	camera     detection.FrameSource
	loop       *detection.Loop
	hub        *websocket.HubService
	capture    *capture.Controller
	enumerator *device.Enumerator
	store      *storage.CaptureStore
	logger     *logger.Logger

	// paces frames to STREAM_FPS
	limiter *rate.Limiter
}

// NewManager creates a Manager. store may be nil when the capture journal is disabled.
func NewManager(camera detection.FrameSource, loop *detection.Loop, hub *websocket.HubService,
	capture *capture.Controller, enumerator *device.Enumerator, store *storage.CaptureStore,
	config *config.Config, logger *logger.Logger) *Manager {
	fps := config.StreamFPS
	if fps <= 0 {
		fps = 15
	}
	return &Manager{
		camera:     camera,
		loop:       loop,
		hub:        hub,
		capture:    capture,
		enumerator: enumerator,
		store:      store,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(fps), 1),
	}
}

// Run forwards camera frames and detection results to the hub until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	results, cancel := m.loop.Subscribe()
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case res, ok := <-results:
				if !ok {
					return nil
				}
				m.HandleResult(res)
			}
		}
	})
	g.Go(func() error { return m.streamFrames(ctx) })
	return g.Wait()
}

// streamFrames sends each new camera frame to the viewers, at most STREAM_FPS per second.
func (m *Manager) streamFrames(ctx context.Context) error {
	var lastSeq uint64
	for {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil
		}
		frame, ready := m.camera.Frame()
		if !ready || frame.Seq == lastSeq {
			continue
		}
		if m.SendToViewers(frame) {
			lastSeq = frame.Seq
		}
	}
}

// HandleResult forwards one detection result to the viewers.
func (m *Manager) HandleResult(res detection.Result) {
	if m.hub.GetClientCount() == 0 {
		return
	}
	if !m.hub.BroadcastDetections(res.Seq, res.Width, res.Height, res.Detections, res.Overlay, res.Err) {
		m.logger.Debug("Viewer queue full, dropped detections %d", res.Seq)
	}
}

// SendToViewers broadcasts a camera frame. It reports whether the frame was queued.
func (m *Manager) SendToViewers(frame model.Frame) bool {
	if m.hub.GetClientCount() == 0 {
		return false
	}
	return m.hub.BroadcastFrame(frame)
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

func (m *Manager) GetDetectionLoop() *detection.Loop {
	return m.loop
}

func (m *Manager) GetCaptureController() *capture.Controller {
	return m.capture
}

func (m *Manager) GetEnumerator() *device.Enumerator {
	return m.enumerator
}

func (m *Manager) GetCaptureStore() *storage.CaptureStore {
	return m.store
}
