package ledger

import (
	"fmt"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

// Row is the flattened Parquet schema of an UploadRecord. Null remote
// fields and countries become empty strings.
type Row struct {
	Filename      string   `parquet:"filename"`
	FolderPath    string   `parquet:"folder_path"`
	Country       string   `parquet:"country"`
	CountryCode   string   `parquet:"country_code"`
	Category      string   `parquet:"category"`
	Tags          []string `parquet:"tags,list"`
	AltText       string   `parquet:"alt_text"`
	Confidence    string   `parquet:"confidence"`
	RemoteAssetID string   `parquet:"remote_asset_id"`
	RemoteURL     string   `parquet:"remote_url"`
	RemoteDocID   string   `parquet:"remote_doc_id"`
}

// ToRow flattens a record
func ToRow(rec models.UploadRecord) Row {
	return Row{
		Filename:      rec.Filename,
		FolderPath:    rec.FolderPath,
		Country:       deref(rec.Country),
		CountryCode:   deref(rec.CountryCode),
		Category:      string(rec.Category),
		Tags:          rec.Tags,
		AltText:       rec.AltText,
		Confidence:    string(rec.Confidence),
		RemoteAssetID: deref(rec.RemoteAssetID),
		RemoteURL:     deref(rec.RemoteURL),
		RemoteDocID:   deref(rec.RemoteDocID),
	}
}

// ExportParquet writes records to path as a Parquet file
func ExportParquet(path string, records []models.UploadRecord) error {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, ToRow(rec))
	}

	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}

	slog.Debug("Parquet export written", "path", path, "num_rows", len(rows))
	return nil
}

// ReadParquet loads rows written by ExportParquet
func ReadParquet(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}
	return rows, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
