package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"camdetect/internal/config"
	"camdetect/internal/dto"
	"camdetect/internal/logger"
	"camdetect/internal/model"
)

// memoryRepo is an in-memory repository.CaptureRepository.
type memoryRepo struct {
	mu       sync.Mutex
	captures map[string]*model.Capture
	err      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{captures: make(map[string]*model.Capture)}
}

func (r *memoryRepo) Insert(c *model.Capture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.captures[c.ID] = c
	return nil
}

func (r *memoryRepo) GetByID(id string) (*model.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captures[id], nil
}

func (r *memoryRepo) GetAll(filter *dto.CaptureFilters) ([]model.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Capture
	for _, c := range r.captures {
		out = append(out, *c)
	}
	return out, nil
}

func (r *memoryRepo) GetTotalCount(filter *dto.CaptureFilters) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.captures), nil
}

func (r *memoryRepo) Exists(filename string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.captures {
		if c.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.captures, id)
	return nil
}

func (r *memoryRepo) DeleteAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = make(map[string]*model.Capture)
	return nil
}

func newTestStore(t *testing.T, repo *memoryRepo) *CaptureStore {
	t.Helper()
	dir := t.TempDir()
	l, err := logger.NewLogger(&config.Config{LogDirectory: filepath.Join(dir, "logs"), LogLevel: "info"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })

	cfg := &config.Config{CaptureDirectory: filepath.Join(dir, "captures")}
	if repo == nil {
		return NewCaptureStore(cfg, l, nil)
	}
	return NewCaptureStore(cfg, l, repo)
}

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.Local)

func TestSave_WritesFileAndRecordsCapture(t *testing.T) {
	repo := newMemoryRepo()
	store := newTestStore(t, repo)
	store.now = func() time.Time { return fixedTime }

	detections := []model.Detection{{Label: "person", Confidence: 0.9, Box: model.Box{X: 1, Y: 2, Width: 3, Height: 4}}}
	frame := model.Frame{Width: 640, Height: 480, Data: []byte{1}}

	c, err := store.Save([]byte("png-data"), frame, detections)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if c.Filename != "2025-03-14_09-26-53.589_captured.png" {
		t.Errorf("Filename = %s", c.Filename)
	}
	if c.ID == "" {
		t.Error("expected a capture id")
	}
	if c.Width != 640 || c.Height != 480 || c.FileSize != 8 {
		t.Errorf("capture = %+v", c)
	}

	data, err := os.ReadFile(c.FilePath)
	if err != nil {
		t.Fatalf("failed to read capture file: %v", err)
	}
	if string(data) != "png-data" {
		t.Errorf("file content = %q", data)
	}

	stored, _ := repo.GetByID(c.ID)
	if stored == nil || len(stored.Detections) != 1 {
		t.Errorf("journal entry = %+v", stored)
	}

	detections[0].Label = "changed"
	if stored.Detections[0].Label != "person" {
		t.Error("capture shares detections with the caller")
	}
}

func TestSave_UniqueNamesWithinOneMillisecond(t *testing.T) {
	store := newTestStore(t, newMemoryRepo())
	store.now = func() time.Time { return fixedTime }

	first, err := store.Save([]byte("a"), model.Frame{}, nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, err := store.Save([]byte("b"), model.Frame{}, nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if first.Filename == second.Filename {
		t.Fatalf("both captures named %s", first.Filename)
	}
	if second.Filename != "2025-03-14_09-26-53.590_captured.png" {
		t.Errorf("second Filename = %s", second.Filename)
	}
}

func TestSave_JournalFailureKeepsFile(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = errors.New("database is locked")
	store := newTestStore(t, repo)

	c, err := store.Save([]byte("png"), model.Frame{}, nil)
	if err == nil {
		t.Fatal("expected journal error")
	}
	if c == nil {
		t.Fatal("expected capture even when the journal fails")
	}
	if _, statErr := os.Stat(c.FilePath); statErr != nil {
		t.Errorf("capture file missing: %v", statErr)
	}
}

func TestSave_WithoutJournal(t *testing.T) {
	store := newTestStore(t, nil)

	c, err := store.Save([]byte("png"), model.Frame{}, nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		t.Errorf("capture file missing: %v", err)
	}
	if err := store.Delete(c.ID); err == nil {
		t.Error("expected Delete to fail without a journal")
	}
}

func TestDelete(t *testing.T) {
	repo := newMemoryRepo()
	store := newTestStore(t, repo)

	c, err := store.Save([]byte("png"), model.Frame{}, nil)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Delete(c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(c.FilePath); !os.IsNotExist(err) {
		t.Errorf("expected file removed, stat error = %v", err)
	}
	if stored, _ := repo.GetByID(c.ID); stored != nil {
		t.Error("expected journal entry removed")
	}

	if err := store.Delete(c.ID); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Delete() of missing capture error = %v", err)
	}
}

func TestPath(t *testing.T) {
	store := newTestStore(t, nil)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "2025-03-14_09-26-53.589_captured.png", false},
		{"empty", "", true},
		{"parent", "../secret.png", true},
		{"nested", "a/b.png", true},
		{"hidden", ".env", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Path(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Path(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != filepath.Join(store.Directory(), tt.input) {
				t.Errorf("Path(%q) = %s", tt.input, got)
			}
		})
	}
}

func TestParseFilename(t *testing.T) {
	ts, err := ParseFilename("2025-03-14_09-26-53.589_captured.png")
	if err != nil {
		t.Fatalf("ParseFilename() error = %v", err)
	}
	if !ts.Equal(fixedTime) {
		t.Errorf("ParseFilename() = %v, expected %v", ts, fixedTime)
	}

	for _, name := range []string{"captured.png", "2025-03-14_captured.png", "2025-03-14_09-26-53.589.jpg"} {
		if _, err := ParseFilename(name); err == nil {
			t.Errorf("ParseFilename(%q) expected error", name)
		}
	}
}

func TestReindex(t *testing.T) {
	repo := newMemoryRepo()
	store := newTestStore(t, repo)
	store.now = func() time.Time { return fixedTime }

	if _, err := store.Save([]byte("known"), model.Frame{}, nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	files := map[string]string{
		"2025-03-15_10-00-00.000_captured.png": "orphan",
		"bad-name_captured.png":                "broken",
		"notes.txt":                            "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(store.Directory(), name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(store.Directory(), "sub_captured.png"), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	added, skipped, err := store.Reindex()
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if added != 1 || skipped != 1 {
		t.Errorf("Reindex() = added %d, skipped %d, expected 1 and 1", added, skipped)
	}

	exists, _ := repo.Exists("2025-03-15_10-00-00.000_captured.png")
	if !exists {
		t.Error("orphan capture was not recorded")
	}
	if n, _ := repo.GetTotalCount(nil); n != 2 {
		t.Errorf("journal has %d captures, expected 2", n)
	}

	added, _, err = store.Reindex()
	if err != nil || added != 0 {
		t.Errorf("second Reindex() added %d, error %v", added, err)
	}
}

func TestClear(t *testing.T) {
	repo := newMemoryRepo()
	store := newTestStore(t, repo)

	for i := 0; i < 3; i++ {
		if _, err := store.Save([]byte("png"), model.Frame{}, nil); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	other := filepath.Join(store.Directory(), "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Clear()
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Clear() removed %d files, expected 3", removed)
	}
	if n, _ := repo.GetTotalCount(nil); n != 0 {
		t.Errorf("journal has %d captures after Clear", n)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}

	if _, err := newTestStore(t, nil).Clear(); err == nil {
		t.Error("expected Clear to fail without a journal")
	}
}

// ========================================
// Journal
// ========================================

func TestOpenJournal_OffByDefault(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		CaptureDirectory: filepath.Join(dir, "captures"),
		DatabasePath:     filepath.Join(dir, "data", "captures.db"),
		LogDirectory:     filepath.Join(dir, "logs"),
		LogLevel:         "info",
	}
	l, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer l.Close()

	journal, err := OpenJournal(cfg, l)
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	if journal != nil {
		t.Fatal("expected no journal when CaptureJournal is off")
	}
	if err := journal.Close(); err != nil {
		t.Errorf("Close() on nil journal error = %v", err)
	}

	for _, path := range []string{cfg.CaptureDirectory, filepath.Dir(cfg.DatabasePath)} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s was created, stat error = %v", path, err)
		}
	}
}

func TestOpenJournal_Enabled(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		CaptureJournal:   true,
		CaptureDirectory: filepath.Join(dir, "captures"),
		DatabasePath:     filepath.Join(dir, "data", "captures.db"),
		LogDirectory:     filepath.Join(dir, "logs"),
		LogLevel:         "info",
	}
	l, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer l.Close()

	journal, err := OpenJournal(cfg, l)
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	defer journal.Close()

	if journal.Store == nil || journal.Captures == nil || journal.Detections == nil {
		t.Fatalf("journal = %+v", journal)
	}
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		t.Errorf("database not created: %v", err)
	}

	c, err := journal.Store.Save([]byte("png"), model.Frame{Width: 2, Height: 2}, []model.Detection{{Label: "cup", Confidence: 0.8}})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	names, err := journal.Detections.GetObjectNamesByCaptureID(c.ID)
	if err != nil || len(names) != 1 || names[0] != "cup" {
		t.Errorf("GetObjectNamesByCaptureID() = %v, %v", names, err)
	}
}
