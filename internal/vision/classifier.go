// Package vision normalizes images and asks a vision model to classify them.
//
// The classifier does not retry; callers wrap Classify in a retry policy.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/trailhead-retreats/mediaingest/internal/models"
	"github.com/trailhead-retreats/mediaingest/internal/providers"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
)

// Classification failure stages
const (
	StageNormalize = "normalize"
	StageRateLimit = "rate_limit"
	StageRequest   = "request"
	StageParse     = "parse"
)

// ErrClassification is matched by every ClassificationError
var ErrClassification = errors.New("classification failed")

// ClassificationError reports which step of Classify failed
type ClassificationError struct {
	Stage string
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification %s: %v", e.Stage, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

func (e *ClassificationError) Is(target error) bool { return target == ErrClassification }

// Options configure a Classifier
type Options struct {
	Model             string
	MaxDimension      int
	JPEGQuality       int
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
	Timeout           time.Duration
}

// Classifier turns image bytes into a ClassificationResult
type Classifier struct {
	provider providers.Provider
	opts     Options
	prompt   string
	limiter  *rate.Limiter
}

// New creates a classifier around a provider. A RequestsPerMinute of zero
// disables pacing.
func New(provider providers.Provider, opts Options) *Classifier {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
	}

	return &Classifier{
		provider: provider,
		opts:     opts,
		prompt:   buildPrompt(),
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Classify normalizes data, calls the model and parses its answer
func (c *Classifier) Classify(ctx context.Context, data []byte) (models.ClassificationResult, error) {
	normalized, err := Normalize(data, c.opts.MaxDimension, c.opts.JPEGQuality)
	if err != nil {
		// same bytes, same decode error
		return models.ClassificationResult{}, retry.Permanent(&ClassificationError{Stage: StageNormalize, Err: err})
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.ClassificationResult{}, &ClassificationError{Stage: StageRateLimit, Err: err}
	}

	callCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := c.provider.Describe(callCtx, providers.Request{
		Model:       c.opts.Model,
		Prompt:      c.prompt,
		Image:       normalized,
		MimeType:    NormalizedMimeType,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		if retry.IsPermanent(err) {
			return models.ClassificationResult{}, retry.Permanent(&ClassificationError{Stage: StageRequest, Err: err})
		}
		return models.ClassificationResult{}, &ClassificationError{Stage: StageRequest, Err: err}
	}

	slog.Debug("Vision response received",
		"model", c.opts.Model,
		"payload_bytes", len(normalized),
		"content_length", len(content),
		"duration_ms", time.Since(start).Milliseconds())

	result, err := ParseResponse(content)
	if err != nil {
		return models.ClassificationResult{}, &ClassificationError{Stage: StageParse, Err: err}
	}

	return result, nil
}
