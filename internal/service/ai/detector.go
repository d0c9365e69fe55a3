package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/model"
)

const (
	// DefaultDetectionThreshold is the minimum confidence for object detections.
	DefaultDetectionThreshold = 0.5
	// inputSize is the SSD MobileNet input resolution.
	inputSize = 300
)

// ErrNotLoaded is returned when Detect is called before a network is loaded.
var ErrNotLoaded = errors.New("detection network not loaded")

// DetectorService wraps a pre-trained SSD network loaded through the OpenCV DNN module.
type DetectorService struct {
	net        gocv.Net
	loaded     bool
	mu         sync.Mutex
	modelPath  string
	configPath string
	threshold  float64
	logger     *logger.Logger
}

// NewDetectorService creates a detector with model/config paths and a logger.
// The network is not loaded until Load is called.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	threshold := config.DetectionThreshold
	if threshold <= 0 {
		threshold = DefaultDetectionThreshold
	}
	return &DetectorService{
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		threshold:  threshold,
		logger:     logger,
	}
}

// Load reads the DNN network and sets backend/target preferences. It is a one-time operation.
func (s *DetectorService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable target: %w", err)
	}

	s.net = net
	s.loaded = true
	s.logger.Info("Detection network loaded from %s", s.modelPath)
	return nil
}

// Detect runs the DNN on the frame and returns detections above the confidence threshold.
func (s *DetectorService) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded frame %d is empty", frame.Seq)
	}

	// Create blob with parameters that fit ssd coco net input
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(inputSize, inputSize), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	// output layout: [ batch_id, class_id, confidence, x1, y1, x2, y2 ] per row
	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	results := ParseSSDOutput(values, mat.Cols(), mat.Rows(), s.threshold)
	s.logger.Debug("Frame %d: %d object(s) detected", frame.Seq, len(results))
	return results, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil
	}
	s.loaded = false
	return s.net.Close()
}
