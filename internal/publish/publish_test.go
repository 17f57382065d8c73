package publish

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-retreats/mediaingest/internal/models"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

type fakeStore struct {
	mu            sync.Mutex
	uploadErrs    []error
	documentErrs  []error
	uploads       int
	documents     int
	uploadedBody  []byte
	lastKey       AssetKey
	lastDocument  Document
}

func (f *fakeStore) UploadAsset(ctx context.Context, key AssetKey, body io.Reader, size int64) (Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		if err != nil {
			return Asset{}, err
		}
	}
	data, _ := io.ReadAll(body)
	f.uploadedBody = data
	f.lastKey = key
	return Asset{ID: "image-" + key.Fingerprint, URL: "https://cdn.example.com/" + key.Filename}, nil
}

func (f *fakeStore) CreateDocument(ctx context.Context, doc Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents++
	if len(f.documentErrs) > 0 {
		err := f.documentErrs[0]
		f.documentErrs = f.documentErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.lastDocument = doc
	return doc.ID, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func sampleRequest() Request {
	return Request{
		Asset: models.ImageAsset{
			Path:               "/photos/panama/beach.jpg",
			RelativeFolderPath: "panama",
			Filename:           "beach.jpg",
			Extension:          ".jpg",
		},
		Fingerprint: "abc123",
		Data:        []byte("jpeg-bytes"),
		Result: models.ClassificationResult{
			Category:   models.CategoryDestination,
			Tags:       []string{"beach", "sand", "sea"},
			AltText:    "Empty beach",
			Confidence: models.ConfidenceHigh,
		},
		Country: &models.CountryInfo{Name: "Panama", ISOCode: "PA"},
	}
}

func TestPublishSuccess(t *testing.T) {
	store := &fakeStore{}
	p := New(store, fastPolicy(), "production")

	receipt, err := p.Publish(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "image-abc123", receipt.AssetID)
	assert.Equal(t, "https://cdn.example.com/beach.jpg", receipt.PublicURL)
	assert.Equal(t, DocumentID("abc123", "panama/beach.jpg", "production"), receipt.DocumentID)

	assert.Equal(t, []byte("jpeg-bytes"), store.uploadedBody)
	assert.Equal(t, "image/jpeg", store.lastKey.ContentType)

	doc := store.lastDocument
	assert.Equal(t, "image-abc123", doc.AssetID)
	assert.Equal(t, "Panama", doc.Country)
	assert.Equal(t, "PA", doc.CountryCode)
	assert.Equal(t, "panama", doc.FolderPath)
	assert.Equal(t, models.CategoryDestination, doc.Category)
	assert.Equal(t, "abc123", doc.Fingerprint)
}

func TestPublishRetriesEachStepIndependently(t *testing.T) {
	store := &fakeStore{
		uploadErrs:   []error{errors.New("timeout"), nil},
		documentErrs: []error{errors.New("503"), errors.New("503"), nil},
	}
	p := New(store, fastPolicy(), "production")

	_, err := p.Publish(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, store.uploads)
	assert.Equal(t, 3, store.documents)

	// the retried upload must see the full body again
	assert.Equal(t, []byte("jpeg-bytes"), store.uploadedBody)
}

func TestPublishUploadExhausted(t *testing.T) {
	cause := errors.New("connection refused")
	store := &fakeStore{uploadErrs: []error{cause, cause, cause}}
	p := New(store, fastPolicy(), "production")

	_, err := p.Publish(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, cause)

	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StepUpload, pe.Step)
	assert.Equal(t, 3, store.uploads)
	assert.Equal(t, 0, store.documents)
}

func TestPublishDocumentFailureReportsOrphan(t *testing.T) {
	cause := retry.Permanent(errors.New("400 bad mutation"))
	store := &fakeStore{documentErrs: []error{cause}}
	p := New(store, fastPolicy(), "production")

	_, err := p.Publish(context.Background(), sampleRequest())

	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StepDocument, pe.Step)
	assert.Equal(t, "image-abc123", pe.AssetID)
	assert.Equal(t, 1, store.documents)
	assert.Contains(t, err.Error(), "orphaned asset image-abc123")
}

func TestPublishWithoutCountry(t *testing.T) {
	store := &fakeStore{}
	req := sampleRequest()
	req.Country = nil

	_, err := New(store, fastPolicy(), "production").Publish(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, store.lastDocument.Country)
	assert.Empty(t, store.lastDocument.CountryCode)
}

func TestDocumentIDStable(t *testing.T) {
	a := DocumentID("fp", "panama/beach.jpg", "production")
	assert.Equal(t, a, DocumentID("fp", "panama/beach.jpg", "production"))
	assert.NotEqual(t, a, DocumentID("fp", "panama/beach.jpg", "staging"))
	assert.NotEqual(t, a, DocumentID("fp", "nicaragua/beach.jpg", "production"))
}

func TestMetadataDigest(t *testing.T) {
	result := models.ClassificationResult{
		Category:   models.CategoryDestination,
		Tags:       []string{"beach", "sea"},
		AltText:    "Empty beach",
		Confidence: models.ConfidenceHigh,
	}
	panama := &models.CountryInfo{Name: "Panama", ISOCode: "PA"}
	base := MetadataDigest(result, panama)

	assert.Equal(t, base, MetadataDigest(result, &models.CountryInfo{Name: "Panama", ISOCode: "PA"}))

	changed := map[string]func() string{
		"fallback verdict": func() string {
			return MetadataDigest(models.FallbackClassification("beach.jpg"), panama)
		},
		"tags": func() string {
			r := result
			r.Tags = []string{"beach"}
			return MetadataDigest(r, panama)
		},
		"alt text": func() string {
			r := result
			r.AltText = "Crowded beach"
			return MetadataDigest(r, panama)
		},
		"confidence": func() string {
			r := result
			r.Confidence = models.ConfidenceLow
			return MetadataDigest(r, panama)
		},
		"no country": func() string {
			return MetadataDigest(result, nil)
		},
	}
	for name, digest := range changed {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, base, digest())
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType(".JPG"))
	assert.Equal(t, "image/jpeg", ContentType(".jpeg"))
	assert.Equal(t, "image/png", ContentType(".png"))
	assert.Equal(t, "image/webp", ContentType(".webp"))
	assert.Equal(t, "application/octet-stream", ContentType(".gif"))
}
