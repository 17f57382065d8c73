// Package objectstore publishes assets and metadata documents into a blob
// bucket (S3-compatible or Azure) instead of a CMS.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/trailhead-retreats/mediaingest/internal/publish"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

var (
	// ErrEmptyKey indicates an empty object key was provided.
	ErrEmptyKey = errors.New("object key must not be empty")
	// ErrInvalidKey indicates the object key contains a path traversal segment.
	ErrInvalidKey = errors.New("object key contains invalid path segment")
)

// Bucket is the minimal blob API the store needs
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(key string) string
}

// Store lays assets out as <dataset>/assets/<fingerprint><ext> and documents
// as <dataset>/documents/<id>.json
type Store struct {
	bucket  Bucket
	dataset string
}

// New wraps a bucket as a publish.ContentStore writing under dataset
func New(bucket Bucket, dataset string) *Store {
	return &Store{bucket: bucket, dataset: dataset}
}

// AssetKey returns the object key for an asset
func AssetKey(dataset, fingerprint, ext string) string {
	return prefix(dataset) + "assets/" + fingerprint + strings.ToLower(ext)
}

// DocumentKey returns the object key for a document
func DocumentKey(dataset, id string) string {
	return prefix(dataset) + "documents/" + id + ".json"
}

func prefix(dataset string) string {
	if dataset == "" {
		return ""
	}
	return dataset + "/"
}

func (s *Store) UploadAsset(ctx context.Context, key publish.AssetKey, body io.Reader, size int64) (publish.Asset, error) {
	objectKey := AssetKey(s.dataset, key.Fingerprint, key.Extension)
	if err := validateKey(objectKey); err != nil {
		return publish.Asset{}, retry.Permanent(err)
	}

	if err := s.bucket.Put(ctx, objectKey, body, size, key.ContentType); err != nil {
		return publish.Asset{}, fmt.Errorf("put asset %s: %w", objectKey, err)
	}

	return publish.Asset{ID: objectKey, URL: s.bucket.URL(objectKey)}, nil
}

type documentBody struct {
	ID          string   `json:"id"`
	Asset       string   `json:"asset"`
	AssetURL    string   `json:"assetUrl"`
	Fingerprint string   `json:"fingerprint"`
	Filename    string   `json:"filename"`
	FolderPath  string   `json:"folderPath"`
	AltText     string   `json:"altText"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Confidence  string   `json:"confidence"`
	Country     string   `json:"country,omitempty"`
	CountryCode string   `json:"countryCode,omitempty"`
}

func (s *Store) CreateDocument(ctx context.Context, doc publish.Document) (string, error) {
	if doc.ID == "" {
		return "", retry.Permanent(ErrEmptyKey)
	}
	objectKey := DocumentKey(s.dataset, doc.ID)
	if err := validateKey(objectKey); err != nil {
		return "", retry.Permanent(err)
	}

	data, err := json.MarshalIndent(documentBody{
		ID:          doc.ID,
		Asset:       doc.AssetID,
		AssetURL:    s.bucket.URL(doc.AssetID),
		Fingerprint: doc.Fingerprint,
		Filename:    doc.Filename,
		FolderPath:  doc.FolderPath,
		AltText:     doc.AltText,
		Category:    string(doc.Category),
		Tags:        doc.Tags,
		Confidence:  string(doc.Confidence),
		Country:     doc.Country,
		CountryCode: doc.CountryCode,
	}, "", "  ")
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal document: %w", err))
	}

	if err := s.bucket.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("put document %s: %w", objectKey, err)
	}

	return doc.ID, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
