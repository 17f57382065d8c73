// Package ledger writes the per-run results and failure ledgers and the
// derived reports built from them.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

const (
	DefaultResultsFile  = "upload-results.json"
	DefaultFailuresFile = "upload-failures.json"
)

// WriteResults overwrites path with the results ledger
func WriteResults(path string, records []models.UploadRecord) error {
	if records == nil {
		records = []models.UploadRecord{}
	}
	return writeJSON(path, records)
}

// WriteFailures overwrites path with the failure ledger
func WriteFailures(path string, failures []models.FailureRecord) error {
	if failures == nil {
		failures = []models.FailureRecord{}
	}
	return writeJSON(path, failures)
}

// ReadResults loads a results ledger written by WriteResults
func ReadResults(path string) ([]models.UploadRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results ledger: %w", err)
	}

	var records []models.UploadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse results ledger %s: %w", path, err)
	}
	return records, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	return writeAtomic(path, data)
}

// writeAtomic replaces path in one rename so readers never see half a file
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
