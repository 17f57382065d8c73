package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-retreats/mediaingest/internal/models"
	"github.com/trailhead-retreats/mediaingest/internal/providers"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeProvider struct {
	content string
	err     error
	calls   int
	last    providers.Request
}

func (f *fakeProvider) Describe(ctx context.Context, req providers.Request) (string, error) {
	f.calls++
	f.last = req
	return f.content, f.err
}

func TestNormalizeBoundsLongerEdge(t *testing.T) {
	out, err := Normalize(pngBytes(t, 400, 200), 100, 80)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestNormalizeDoesNotUpscale(t *testing.T) {
	out, err := Normalize(pngBytes(t, 60, 90), 100, 80)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 90, img.Bounds().Dy())
}

func TestNormalizeRejectsCorruptInput(t *testing.T) {
	_, err := Normalize([]byte("definitely not an image"), 100, 80)
	assert.Error(t, err)
}

func TestClassifySuccess(t *testing.T) {
	provider := &fakeProvider{
		content: "```json\n{\"category\":\"food\",\"tags\":[\"tacos\",\"lunch\",\"table\"],\"altText\":\"Tacos on a table\",\"confidence\":\"medium\"}\n```",
	}
	c := New(provider, Options{Model: "test-model", MaxDimension: 64, MaxTokens: 256})

	result, err := c.Classify(context.Background(), pngBytes(t, 128, 32))
	require.NoError(t, err)
	assert.Equal(t, models.CategoryFood, result.Category)
	assert.Equal(t, []string{"tacos", "lunch", "table"}, result.Tags)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "test-model", provider.last.Model)
	assert.Equal(t, 256, provider.last.MaxTokens)
	assert.Equal(t, NormalizedMimeType, provider.last.MimeType)
	assert.Contains(t, provider.last.Prompt, "accommodation")

	cfg, _, err := image.DecodeConfig(bytes.NewReader(provider.last.Image))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
}

func TestClassifyErrors(t *testing.T) {
	img := pngBytes(t, 8, 8)

	tests := []struct {
		name      string
		data      []byte
		provider  *fakeProvider
		stage     string
		permanent bool
	}{
		{
			name:      "corrupt image",
			data:      []byte("garbage"),
			provider:  &fakeProvider{},
			stage:     StageNormalize,
			permanent: true,
		},
		{
			name:     "remote failure",
			data:     img,
			provider: &fakeProvider{err: errors.New("connection reset")},
			stage:    StageRequest,
		},
		{
			name:      "remote rejects request",
			data:      img,
			provider:  &fakeProvider{err: retry.Permanent(errors.New("401"))},
			stage:     StageRequest,
			permanent: true,
		},
		{
			name:     "unparseable answer",
			data:     img,
			provider: &fakeProvider{content: "I think this is a beach"},
			stage:    StageParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.provider, Options{}).Classify(context.Background(), tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrClassification)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))

			var ce *ClassificationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.stage, ce.Stage)
		})
	}
}

func TestClassifyRateLimitHonoursContext(t *testing.T) {
	provider := &fakeProvider{content: `{"category":"food","tags":["a","b","c"],"altText":"x","confidence":"low"}`}
	c := New(provider, Options{RequestsPerMinute: 1})
	img := pngBytes(t, 4, 4)

	_, err := c.Classify(context.Background(), img)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Classify(ctx, img)

	var ce *ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageRateLimit, ce.Stage)
	assert.Equal(t, 1, provider.calls)
}
