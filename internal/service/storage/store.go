package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/model"
	"camdetect/internal/repository"
)

const (
	// TimestampLayout prefixes capture file names on disk.
	TimestampLayout = "2006-01-02_15-04-05.000"
	// CaptureSuffix ends every capture file name on disk.
	CaptureSuffix = "_captured.png"
)

// CaptureStore writes captured images to disk and records them in the journal.
type CaptureStore struct {
	capturesDir string
	mu          sync.Mutex
	logger      *logger.Logger
	captureRepo repository.CaptureRepository
	now         func() time.Time
}

// NewCaptureStore creates a CaptureStore. captureRepo may be nil, in which case
// captures are only written to disk.
func NewCaptureStore(config *config.Config, logger *logger.Logger, captureRepo repository.CaptureRepository) *CaptureStore {
	return &CaptureStore{
		capturesDir: config.CaptureDirectory,
		logger:      logger,
		captureRepo: captureRepo,
		now:         time.Now,
	}
}

// Directory returns the capture directory.
func (s *CaptureStore) Directory() string {
	return s.capturesDir
}

// Save writes a PNG capture and its detections.
func (s *CaptureStore) Save(data []byte, frame model.Frame, detections []model.Detection) (*model.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.capturesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	ts := s.now()
	filename := ts.Format(TimestampLayout) + CaptureSuffix
	fullpath := filepath.Join(s.capturesDir, filename)
	for fileExists(fullpath) {
		ts = ts.Add(time.Millisecond)
		filename = ts.Format(TimestampLayout) + CaptureSuffix
		fullpath = filepath.Join(s.capturesDir, filename)
	}

	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to save capture %s: %w", filename, err)
	}

	capture := &model.Capture{
		ID:         uuid.NewString(),
		Filename:   filename,
		FilePath:   fullpath,
		FileSize:   int64(len(data)),
		Width:      frame.Width,
		Height:     frame.Height,
		Timestamp:  ts,
		Detections: model.CloneDetections(detections),
	}

	if s.captureRepo != nil {
		if err := s.captureRepo.Insert(capture); err != nil {
			return capture, fmt.Errorf("failed to record capture %s: %w", filename, err)
		}
	}

	s.logger.Info("Saved capture %s (%d bytes)", filename, len(data))
	return capture, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Path resolves a capture file name inside the capture directory.
func (s *CaptureStore) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid capture name: %q", filename)
	}
	return filepath.Join(s.capturesDir, filename), nil
}

// Delete removes a capture file from disk and from the journal.
func (s *CaptureStore) Delete(id string) error {
	if s.captureRepo == nil {
		return fmt.Errorf("capture journal is disabled")
	}

	capture, err := s.captureRepo.GetByID(id)
	if err != nil {
		return err
	}
	if capture == nil {
		return os.ErrNotExist
	}

	if err := os.Remove(capture.FilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete file %s: %v", capture.FilePath, err)
	}
	return s.captureRepo.Delete(id)
}

// Clear removes every capture file from disk and empties the journal.
// It returns how many files were removed.
func (s *CaptureStore) Clear() (int, error) {
	if s.captureRepo == nil {
		return 0, fmt.Errorf("capture journal is disabled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.capturesDir)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to read capture directory: %w", err)
	}

	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), CaptureSuffix) {
			continue
		}
		path := filepath.Join(s.capturesDir, file.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Error("Failed to delete file %s: %v", path, err)
			continue
		}
		removed++
	}

	if err := s.captureRepo.DeleteAll(); err != nil {
		return removed, err
	}
	s.logger.Info("Removed %d capture(s) from %s", removed, s.capturesDir)
	return removed, nil
}

// Reindex records capture files found on disk that are missing from the journal.
// It returns how many files were added and how many were skipped.
func (s *CaptureStore) Reindex() (added, skipped int, err error) {
	if s.captureRepo == nil {
		return 0, 0, fmt.Errorf("capture journal is disabled")
	}

	files, err := os.ReadDir(s.capturesDir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read capture directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), CaptureSuffix) {
			continue
		}

		exists, err := s.captureRepo.Exists(file.Name())
		if err != nil {
			return added, skipped, err
		}
		if exists {
			continue
		}

		ts, err := ParseFilename(file.Name())
		if err != nil {
			s.logger.Warning("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			s.logger.Warning("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		if err := s.captureRepo.Insert(&model.Capture{
			ID:        uuid.NewString(),
			Filename:  file.Name(),
			FilePath:  filepath.Join(s.capturesDir, file.Name()),
			FileSize:  info.Size(),
			Timestamp: ts,
		}); err != nil {
			return added, skipped, err
		}
		added++
	}

	return added, skipped, nil
}

// ParseFilename extracts the capture time from a file name written by Save.
func ParseFilename(name string) (time.Time, error) {
	if !strings.HasSuffix(name, CaptureSuffix) {
		return time.Time{}, fmt.Errorf("not a capture file: %s", name)
	}
	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSuffix(name, CaptureSuffix), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid capture timestamp in %s: %w", name, err)
	}
	return ts, nil
}
