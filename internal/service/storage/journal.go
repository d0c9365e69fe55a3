package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/repository"
	"camdetect/internal/repository/sqlite"
)

// Journal is the opt-in capture journal: the capture store and the
// repositories of the database behind it.
type Journal struct {
	Store      *CaptureStore
	Captures   repository.CaptureRepository
	Detections repository.DetectionRepository

	db *sqlite.DB
}

// OpenJournal opens the capture journal. It returns nil when CaptureJournal
// is off, and then nothing is created on disk.
func OpenJournal(config *config.Config, logger *logger.Logger) (*Journal, error) {
	if !config.CaptureJournal {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(config.DatabasePath)
	if err != nil {
		return nil, err
	}

	captures := sqlite.NewCaptureRepository(db)
	logger.Info("Capture journal enabled: %s, %s", config.CaptureDirectory, config.DatabasePath)
	return &Journal{
		Store:      NewCaptureStore(config, logger, captures),
		Captures:   captures,
		Detections: sqlite.NewDetectionRepository(db),
		db:         db,
	}, nil
}

// Close closes the journal database. It is safe on a nil Journal.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
