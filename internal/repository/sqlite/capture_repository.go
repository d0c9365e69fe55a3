package sqlite

import (
	"database/sql"
	"fmt"

	"camdetect/internal/dto"
	"camdetect/internal/model"
)

// CaptureRepository implements repository.CaptureRepository for SQLite.
type CaptureRepository struct {
	db *DB
}

// NewCaptureRepository creates a new SQLite capture repository.
func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Insert adds a capture and its detections in a single transaction.
func (r *CaptureRepository) Insert(c *model.Capture) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO captures (id, filename, filepath, filesize, width, height, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Filename, c.FilePath, c.FileSize, c.Width, c.Height, c.Timestamp); err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}

	if len(c.Detections) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO capture_detections (capture_id, object_name, x, y, width, height, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, det := range c.Detections {
			if _, err := stmt.Exec(c.ID, det.Label, det.Box.X, det.Box.Y, det.Box.Width, det.Box.Height, det.Confidence); err != nil {
				return fmt.Errorf("failed to insert detection: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetByID retrieves a capture with its detections. Returns nil when absent.
func (r *CaptureRepository) GetByID(id string) (*model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var c model.Capture
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, filepath, filesize, width, height, timestamp
		FROM captures WHERE id = ?
	`, id).Scan(&c.ID, &c.Filename, &c.FilePath, &c.FileSize, &c.Width, &c.Height, &c.Timestamp)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}

	rows, err := r.db.Conn().Query(`
		SELECT object_name, x, y, width, height, confidence
		FROM capture_detections WHERE capture_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var det model.Detection
		if err := rows.Scan(&det.Label, &det.Box.X, &det.Box.Y, &det.Box.Width, &det.Box.Height, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		c.Detections = append(c.Detections, det)
	}

	return &c, rows.Err()
}

// filterClause builds the WHERE part shared by GetAll and GetTotalCount.
func filterClause(filter *dto.CaptureFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.Object != "" {
		where += " AND d.object_name = ?"
		args = append(args, filter.Object)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND DATE(c.timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		where += " AND DATE(c.timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	return where, args
}

// GetAll retrieves captures based on filter criteria, newest first.
func (r *CaptureRepository) GetAll(filter *dto.CaptureFilters) ([]model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `
		SELECT DISTINCT c.id, c.filename, c.filepath, c.filesize, c.width, c.height, c.timestamp
		FROM captures c
		LEFT JOIN capture_detections d ON c.id = d.capture_id
	` + where + " ORDER BY c.timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var captures []model.Capture
	for rows.Next() {
		var c model.Capture
		if err := rows.Scan(&c.ID, &c.Filename, &c.FilePath, &c.FileSize, &c.Width, &c.Height, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}

	return captures, rows.Err()
}

// GetTotalCount returns the number of captures matching the filter.
func (r *CaptureRepository) GetTotalCount(filter *dto.CaptureFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `
		SELECT COUNT(DISTINCT c.id)
		FROM captures c
		LEFT JOIN capture_detections d ON c.id = d.capture_id
	` + where

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}

	return count, nil
}

// Exists checks if a capture with the given filename exists.
func (r *CaptureRepository) Exists(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM captures WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check capture existence: %w", err)
	}
	return count > 0, nil
}

// Delete removes a capture by its ID; detections cascade.
func (r *CaptureRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM captures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	return nil
}

// DeleteAll removes all captures and their detections.
func (r *CaptureRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM capture_detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM captures`); err != nil {
		return fmt.Errorf("failed to delete captures: %w", err)
	}

	return nil
}
