// Package statestore persists the action cache and the file baselines
// between build sessions.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.StateStore = (*FileStore)(nil)

// document is the on-disk layout of a FileStore.
type document struct {
	Actions map[uint64]uint64            `json:"actions"`
	Files   map[string]domain.FileRecord `json:"files"`
}

// FileStore implements ports.StateStore using a flat JSON file.
type FileStore struct {
	path string
	mu   sync.RWMutex
	doc  document
}

// NewFileStore creates a store backed by the file at path. A missing file is
// an empty store.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: filepath.Clean(path),
		doc: document{
			Actions: make(map[uint64]uint64),
			Files:   make(map[string]domain.FileRecord),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to read state file"), "path", s.path)
	}

	if len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to unmarshal state file"), "path", s.path)
	}
	if doc.Actions != nil {
		s.doc.Actions = doc.Actions
	}
	if doc.Files != nil {
		s.doc.Files = doc.Files
	}
	return nil
}

// save writes the document to a temporary file and renames it into place.
// Caller holds s.mu.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal state file")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create state directory"), "path", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary state file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "failed to write state file")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to write state file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to replace state file"), "path", s.path)
	}
	return nil
}

// LoadActions returns the stored action entries.
func (s *FileStore) LoadActions(_ context.Context) (map[uint64]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.doc.Actions), nil
}

// SaveActions replaces the action entries and writes the file.
func (s *FileStore) SaveActions(_ context.Context, actions map[uint64]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Actions = maps.Clone(actions)
	return s.save()
}

// LoadFiles returns the stored file records.
func (s *FileStore) LoadFiles(_ context.Context) (map[string]domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.doc.Files), nil
}

// SaveFiles replaces the file records and writes the file.
func (s *FileStore) SaveFiles(_ context.Context, files map[string]domain.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Files = maps.Clone(files)
	return s.save()
}

// Close does nothing; every save is already on disk.
func (s *FileStore) Close() error {
	return nil
}
