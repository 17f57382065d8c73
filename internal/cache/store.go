// Package cache persists classification results keyed by content fingerprint.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

// Store is the capability the orchestrator uses to avoid paying for the same
// classification twice. Put must be durable before it returns.
type Store interface {
	Get(ctx context.Context, fingerprint string) (models.ClassificationResult, bool, error)
	Put(ctx context.Context, fingerprint string, result models.ClassificationResult) error
}

// FileStore keeps the whole cache in memory and rewrites the JSON file on
// every Put.
type FileStore struct {
	path    string
	results map[string]models.ClassificationResult
	mu      sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// OpenFile loads the cache at path. A missing file starts an empty cache; a
// corrupt one is moved aside to <path>.corrupt and also starts empty.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		results: make(map[string]models.ClassificationResult),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("No classification cache found, starting empty", "path", path)
			return s, nil
		}
		slog.Warn("Unable to read classification cache, starting empty", "path", path, "error", err)
		return s, nil
	}

	if err := json.Unmarshal(data, &s.results); err != nil {
		slog.Warn("Classification cache is corrupt, starting empty", "path", path, "error", err)
		s.results = make(map[string]models.ClassificationResult)
		if err := os.Rename(path, path+".corrupt"); err != nil {
			slog.Warn("Unable to move corrupt cache aside", "path", path, "error", err)
		}
		return s, nil
	}
	if s.results == nil {
		s.results = make(map[string]models.ClassificationResult)
	}

	slog.Info("Loaded classification cache", "path", path, "entries", len(s.results))
	return s, nil
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, fingerprint string) (models.ClassificationResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, exists := s.results[fingerprint]
	return result, exists, nil
}

// Put inserts the result and persists the entire cache before returning.
// The in-memory entry is rolled back if the write fails.
func (s *FileStore) Put(_ context.Context, fingerprint string, result models.ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.results[fingerprint]
	s.results[fingerprint] = result

	if err := s.flush(); err != nil {
		if existed {
			s.results[fingerprint] = previous
		} else {
			delete(s.results, fingerprint)
		}
		return err
	}
	return nil
}

// Len returns the number of cached fingerprints
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// All returns a copy of every cached entry
func (s *FileStore) All() map[string]models.ClassificationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]models.ClassificationResult, len(s.results))
	for k, v := range s.results {
		result[k] = v
	}
	return result
}

// flush writes to a temp file in the same directory and renames it over the
// cache so a crash never leaves a half-written file. Caller holds mu.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	return nil
}
