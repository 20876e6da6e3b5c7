package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aldercy/wyrd/internal/models"
)

// File is a Provider that keeps the whole registry in a single JSON
// document, the same format exchanged over the import/export boundary, so a
// saved file can be uploaded or edited directly.
type File struct {
	path string
}

// NewFile creates a file-backed provider at path. The parent directory is
// created if needed; the file itself may not exist yet.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute snapshot document path.
func (f *File) Path() string {
	return f.path
}

// Load reads and decodes the snapshot document. A missing file is an empty
// snapshot, not an error.
func (f *File) Load() (map[string]models.Object, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]models.Object{}, nil
		}
		return nil, fmt.Errorf("storage: read snapshot: %w", err)
	}
	var out map[string]models.Object
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("storage: decode snapshot: %w", err)
	}
	if out == nil {
		out = map[string]models.Object{}
	}
	return out, nil
}

// Save atomically writes the snapshot: tmp file, fsync, rename.
func (f *File) Save(snapshot map[string]models.Object) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".wyrd-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Close is a no-op for the file provider.
func (f *File) Close() error {
	return nil
}

var _ Provider = (*File)(nil)
