package capture

import (
	"context"
	"fmt"

	"camdetect/internal/logger"
	"camdetect/internal/model"
)

// DownloadName is the file name offered to the browser for every capture.
const DownloadName = "captured.png"

// Snapshotter grabs the current frame as an encoded PNG.
type Snapshotter interface {
	SnapshotPNG() ([]byte, model.Frame, error)
}

// DetectionState exposes the latest detections produced by the detection loop.
type DetectionState interface {
	Detections() []model.Detection
}

// Store persists a capture. It is optional.
type Store interface {
	Save(data []byte, frame model.Frame, detections []model.Detection) (*model.Capture, error)
}

// Result is what a capture click produces.
type Result struct {
	Filename   string
	Data       []byte
	Frame      model.Frame
	Detections []model.Detection
	Lines      []string
	Capture    *model.Capture
}

// Controller handles capture clicks.
type Controller struct {
	camera Snapshotter
	state  DetectionState
	store  Store
	logger *logger.Logger
}

// NewController creates a capture controller. store may be nil.
func NewController(camera Snapshotter, state DetectionState, store Store, logger *logger.Logger) *Controller {
	return &Controller{
		camera: camera,
		state:  state,
		store:  store,
		logger: logger,
	}
}

// Capture grabs the current frame as PNG and logs one line per current detection.
// Detection state is only read.
func (c *Controller) Capture(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, frame, err := c.camera.SnapshotPNG()
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}

	detections := c.state.Detections()
	if detections == nil {
		detections = []model.Detection{}
	}

	res := &Result{
		Filename:   DownloadName,
		Data:       data,
		Frame:      frame,
		Detections: detections,
		Lines:      make([]string, 0, len(detections)),
	}

	c.logger.Info("Detected objects: %d", len(detections))
	for _, d := range detections {
		line := DetectionLine(d)
		res.Lines = append(res.Lines, line)
		c.logger.Info("%s", line)
	}

	if c.store != nil {
		stored, err := c.store.Save(data, frame, detections)
		if err != nil {
			c.logger.Error("Failed to store capture: %v", err)
		}
		res.Capture = stored
	}

	return res, nil
}

// DetectionLine formats one detection the way capture logs it.
func DetectionLine(d model.Detection) string {
	return fmt.Sprintf("Label: %s, Score: %.4f, Location: %s", d.Label, d.Confidence, d.Box)
}
