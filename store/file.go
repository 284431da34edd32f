package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a [Store] backed by a single JSON file with 0600 permissions,
// suitable for a per-user CLI client. Writes go through a temp file and
// rename so a crash never leaves a torn record behind.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed store at path. The file is created lazily on
// the first Put; a missing file reads as [ErrNotFound].
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: empty path")
	}
	return &File{path: path}, nil
}

// Get implements [Store].
func (f *File) Get(_ context.Context) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("file store: decode: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Put implements [Store].
func (f *File) Put(_ context.Context, rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".sessionkit-*")
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file store: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}

// Clear implements [Store].
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}
