package repository

import (
	"camdetect/internal/dto"
	"camdetect/internal/model"
)

// CaptureRepository defines the interface for capture journal operations.
type CaptureRepository interface {
	// Create operations
	Insert(capture *model.Capture) error

	// Read operations
	GetByID(id string) (*model.Capture, error)
	GetAll(filter *dto.CaptureFilters) ([]model.Capture, error)
	GetTotalCount(filter *dto.CaptureFilters) (int, error)
	Exists(filename string) (bool, error)

	// Delete operations
	Delete(id string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detections stored with captures.
type DetectionRepository interface {
	// Read operations
	GetByCaptureID(captureID string) ([]model.CaptureDetection, error)
	GetObjectNamesByCaptureID(captureID string) ([]string, error)
	GetAllObjectNames() ([]string, error)
}
