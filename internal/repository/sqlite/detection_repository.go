package sqlite

import (
	"fmt"

	"camdetect/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// GetByCaptureID retrieves all detections for a capture.
func (r *DetectionRepository) GetByCaptureID(captureID string) ([]model.CaptureDetection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, capture_id, object_name, x, y, width, height, confidence
		FROM capture_detections WHERE capture_id = ? ORDER BY id
	`, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.CaptureDetection
	for rows.Next() {
		var det model.CaptureDetection
		if err := rows.Scan(&det.ID, &det.CaptureID, &det.ObjectName, &det.X, &det.Y, &det.Width, &det.Height, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetObjectNamesByCaptureID returns the distinct object names of a capture.
func (r *DetectionRepository) GetObjectNamesByCaptureID(captureID string) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT object_name FROM capture_detections WHERE capture_id = ? ORDER BY object_name`, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query object names: %w", err)
	}
	defer rows.Close()

	return scanNames(rows)
}

// GetAllObjectNames returns a list of all unique detected object names.
func (r *DetectionRepository) GetAllObjectNames() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT object_name FROM capture_detections ORDER BY object_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	return scanNames(rows)
}

type nameRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanNames(rows nameRows) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan object name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
