// Package filestore keeps the records document in a single JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m3rciful/gatebot/internal/records"
)

// Repository reads and writes one JSON file.
type Repository struct {
	path string
}

// New returns a repository bound to path. The file is created on first save.
func New(path string) *Repository {
	return &Repository{path: path}
}

// Load decodes the file, or returns a fresh document when it does not exist.
func (r *Repository) Load(_ context.Context) (*records.Document, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return records.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", r.path, err)
	}
	var doc records.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", r.path, err)
	}
	doc.Normalize()
	return &doc, nil
}

// Save writes to a temporary sibling and renames it over the target, so a
// crash never leaves a truncated document behind.
func (r *Repository) Save(_ context.Context, doc *records.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between calls.
func (r *Repository) Close() error { return nil }
