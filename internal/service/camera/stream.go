package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"camdetect/internal/logger"
	"camdetect/internal/model"
)

// ErrCameraClosed is returned when the stream has been closed.
var ErrCameraClosed = errors.New("camera has been closed")

const (
	// jpegQuality is used for frames handed to the detector and viewers.
	jpegQuality = 85
	// readBackoff is the pause after a failed read.
	readBackoff = 50 * time.Millisecond
)

// Stream owns an opened capture device and keeps only the latest frame.
type Stream struct {
	device string
	webcam *gocv.VideoCapture
	logger *logger.Logger

	mu     sync.RWMutex
	latest gocv.Mat
	frame  model.Frame
	seq    uint64
	closed bool
}

// Open opens the capture device. device is either a numeric index or a device path.
func Open(device string, logger *logger.Logger) (*Stream, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}

	webcam, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("camera %s is not available", device)
	}

	logger.Info("Camera %s opened", device)
	return &Stream{
		device: device,
		webcam: webcam,
		logger: logger,
		latest: gocv.NewMat(),
	}, nil
}

// Run reads frames until ctx is cancelled. Each new frame overwrites the previous one.
func (s *Stream) Run(ctx context.Context) error {
	img := gocv.NewMat()
	defer img.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if ok := s.webcam.Read(&img); !ok || img.Empty() {
			s.mu.RLock()
			closed := s.closed
			s.mu.RUnlock()
			if closed {
				return ErrCameraClosed
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readBackoff):
			}
			continue
		}

		if err := s.store(img); err != nil {
			s.logger.Warning("Dropping frame from camera %s: %v", s.device, err)
		}
	}
}

func (s *Stream) store(img gocv.Mat) error {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrCameraClosed
	}

	img.CopyTo(&s.latest)
	s.seq++
	s.frame = model.Frame{
		Seq:    s.seq,
		Width:  img.Cols(),
		Height: img.Rows(),
		Data:   data,
		At:     time.Now(),
	}
	return nil
}

// Frame returns the latest frame. ok is false until a frame with valid
// dimensions has been read.
func (s *Stream) Frame() (model.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, !s.closed && s.frame.Valid()
}

// Snapshot encodes the latest raw frame in the given format (e.g. gocv.PNGFileExt).
func (s *Stream) Snapshot(ext gocv.FileExt) ([]byte, model.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, model.Frame{}, ErrCameraClosed
	}
	if !s.frame.Valid() || s.latest.Empty() {
		return nil, model.Frame{}, model.ErrNoFrame
	}

	buf, err := gocv.IMEncode(ext, s.latest)
	if err != nil {
		return nil, model.Frame{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, s.frame, nil
}

// SnapshotPNG encodes the latest frame as PNG.
func (s *Stream) SnapshotPNG() ([]byte, model.Frame, error) {
	return s.Snapshot(gocv.PNGFileExt)
}

// Close releases the capture device.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	err := s.webcam.Close()
	if cerr := s.latest.Close(); err == nil {
		err = cerr
	}
	return err
}
