// Package publish uploads an image and its metadata document to a content store.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/trailhead-retreats/mediaingest/internal/fingerprint"
	"github.com/trailhead-retreats/mediaingest/internal/models"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

// Publish steps
const (
	StepUpload   = "upload"
	StepDocument = "document"
)

// ErrPublish is matched by every PublishError
var ErrPublish = errors.New("publish failed")

// PublishError wraps the cause of an exhausted or rejected publish step
type PublishError struct {
	Step    string
	AssetID string
	Err     error
}

func (e *PublishError) Error() string {
	if e.AssetID != "" {
		return fmt.Sprintf("publish %s (orphaned asset %s): %v", e.Step, e.AssetID, e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Step, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublish }

// Asset is the content store's handle for an uploaded binary
type Asset struct {
	ID  string
	URL string
}

// Document is the metadata record that references an uploaded asset
type Document struct {
	ID          string
	AssetID     string
	Fingerprint string
	Filename    string
	FolderPath  string
	AltText     string
	Country     string
	CountryCode string
	Category    models.Category
	Tags        []string
	Confidence  models.Confidence
}

// ContentStore is the external system images are published to
type ContentStore interface {
	UploadAsset(ctx context.Context, key AssetKey, body io.Reader, size int64) (Asset, error)
	CreateDocument(ctx context.Context, doc Document) (string, error)
}

// AssetKey identifies the binary being uploaded
type AssetKey struct {
	Fingerprint string
	Filename    string
	Extension   string
	ContentType string
}

// Request carries everything needed to publish one image
type Request struct {
	Asset       models.ImageAsset
	Fingerprint string
	Data        []byte
	Result      models.ClassificationResult
	Country     *models.CountryInfo
}

// Receipt is returned after both steps succeed
type Receipt struct {
	AssetID    string `json:"assetId"`
	DocumentID string `json:"documentId"`
	PublicURL  string `json:"publicUrl"`
}

// Publisher runs the upload and document steps, each under its own retry loop
type Publisher struct {
	store   ContentStore
	policy  retry.Policy
	dataset string
}

// New creates a publisher for the given dataset name
func New(store ContentStore, policy retry.Policy, dataset string) *Publisher {
	return &Publisher{store: store, policy: policy, dataset: dataset}
}

// Publish uploads the asset then creates its document. A document failure
// after a successful upload leaves the asset orphaned.
func (p *Publisher) Publish(ctx context.Context, req Request) (Receipt, error) {
	key := AssetKey{
		Fingerprint: req.Fingerprint,
		Filename:    req.Asset.Filename,
		Extension:   req.Asset.Extension,
		ContentType: ContentType(req.Asset.Extension),
	}

	asset, err := retry.Do(ctx, p.policy, "upload "+req.Asset.RelativePath(), func(ctx context.Context) (Asset, error) {
		return p.store.UploadAsset(ctx, key, bytes.NewReader(req.Data), int64(len(req.Data)))
	})
	if err != nil {
		return Receipt{}, &PublishError{Step: StepUpload, Err: err}
	}

	slog.Debug("Uploaded asset", "path", req.Asset.RelativePath(), "asset_id", asset.ID)

	doc := Document{
		ID:          DocumentID(req.Fingerprint, req.Asset.RelativePath(), p.dataset),
		AssetID:     asset.ID,
		Fingerprint: req.Fingerprint,
		Filename:    req.Asset.Filename,
		FolderPath:  req.Asset.RelativeFolderPath,
		AltText:     req.Result.AltText,
		Category:    req.Result.Category,
		Tags:        req.Result.Tags,
		Confidence:  req.Result.Confidence,
	}
	if req.Country != nil {
		doc.Country = req.Country.Name
		doc.CountryCode = req.Country.ISOCode
	}

	docID, err := retry.Do(ctx, p.policy, "document "+req.Asset.RelativePath(), func(ctx context.Context) (string, error) {
		return p.store.CreateDocument(ctx, doc)
	})
	if err != nil {
		slog.Warn("Asset uploaded but document creation failed", "path", req.Asset.RelativePath(), "asset_id", asset.ID, "error", err)
		return Receipt{}, &PublishError{Step: StepDocument, AssetID: asset.ID, Err: err}
	}

	return Receipt{
		AssetID:    asset.ID,
		DocumentID: docID,
		PublicURL:  asset.URL,
	}, nil
}

var documentNamespace = uuid.MustParse("6f1c2b4e-8d53-4b7a-9f0e-2a6d9c1e7b35")

// DocumentID is stable for the same content at the same path in the same
// dataset, so re-publishing replaces the earlier document.
func DocumentID(fingerprint, relativePath, dataset string) string {
	return uuid.NewSHA1(documentNamespace, []byte(dataset+"\x00"+relativePath+"\x00"+fingerprint)).String()
}

// MetadataDigest hashes the classification and country fields a document
// carries. Two publishes with the same digest wrote the same document.
func MetadataDigest(result models.ClassificationResult, c *models.CountryInfo) string {
	fields := struct {
		Category    models.Category   `json:"category"`
		Tags        []string          `json:"tags"`
		AltText     string            `json:"altText"`
		Confidence  models.Confidence `json:"confidence"`
		Country     string            `json:"country"`
		CountryCode string            `json:"countryCode"`
	}{
		Category:   result.Category,
		Tags:       result.Tags,
		AltText:    result.AltText,
		Confidence: result.Confidence,
	}
	if c != nil {
		fields.Country = c.Name
		fields.CountryCode = c.ISOCode
	}
	// marshalling a struct of strings cannot fail
	data, _ := json.Marshal(fields)
	return fingerprint.Bytes(data)
}

// ContentType maps a lowercase extension to its MIME type
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
