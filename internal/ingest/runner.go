// Package ingest drives every discovered image through hashing,
// classification and publishing, and collects the run's ledgers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trailhead-retreats/mediaingest/internal/cache"
	"github.com/trailhead-retreats/mediaingest/internal/country"
	"github.com/trailhead-retreats/mediaingest/internal/fingerprint"
	"github.com/trailhead-retreats/mediaingest/internal/metrics"
	"github.com/trailhead-retreats/mediaingest/internal/models"
	"github.com/trailhead-retreats/mediaingest/internal/publish"
	"github.com/trailhead-retreats/mediaingest/internal/publishindex"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
	"github.com/trailhead-retreats/mediaingest/internal/walker"
)

// ErrRunFailed is returned when at least one image ended in the failure ledger
var ErrRunFailed = errors.New("run finished with failures")

// Classifier is satisfied by *vision.Classifier
type Classifier interface {
	Classify(ctx context.Context, data []byte) (models.ClassificationResult, error)
}

// Publisher is satisfied by *publish.Publisher
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (publish.Receipt, error)
}

// PublishIndex is satisfied by *publishindex.Index
type PublishIndex interface {
	Lookup(ctx context.Context, key publishindex.Key) (publishindex.Entry, bool, error)
	Record(ctx context.Context, entry publishindex.Entry) error
}

// Options configure a Runner
type Options struct {
	DryRun      bool
	Dataset     string
	Concurrency int
	Republish   bool
	Retry       retry.Policy
	Progress    io.Writer
}

// Runner processes one root directory per Run call
type Runner struct {
	cache      cache.Store
	classifier Classifier
	publisher  Publisher
	index      PublishIndex
	metrics    *metrics.Recorder
	opts       Options

	flight          singleflight.Group
	classifierCalls atomic.Int64
	progressMu      sync.Mutex
}

// New creates a runner. publisher may be nil for dry runs.
func New(store cache.Store, classifier Classifier, publisher Publisher, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Runner{
		cache:      store,
		classifier: classifier,
		publisher:  publisher,
		opts:       opts,
	}
}

// WithIndex enables publish deduplication
func (r *Runner) WithIndex(index PublishIndex) *Runner {
	r.index = index
	return r
}

// WithMetrics records outcomes into m
func (r *Runner) WithMetrics(m *metrics.Recorder) *Runner {
	r.metrics = m
	return r
}

// ClassifierCalls is the number of classifier invocations so far, retries
// included
func (r *Runner) ClassifierCalls() int {
	return int(r.classifierCalls.Load())
}

// item is one image's progress through the state machine
type item struct {
	index       int
	asset       models.ImageAsset
	state       State
	data        []byte
	fingerprint string
	country     *models.CountryInfo
	result      models.ClassificationResult
	receipt     publish.Receipt
	cacheHit    bool
	fallback    bool
	reused      bool
	err         error
}

// Run walks root and processes every image. Per-image failures end up in
// the summary; only an unreadable root or cancellation return an error, and
// in that case no summary is produced.
func (r *Runner) Run(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()

	assets, err := walker.Walk(root)
	if err != nil {
		return nil, err
	}

	slog.Info("Discovered images", "root", root, "count", len(assets), "concurrency", r.opts.Concurrency, "dry_run", r.opts.DryRun)

	items := make([]*item, len(assets))
	for i, asset := range assets {
		items[i] = &item{index: i, asset: asset, state: StateDiscovered}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, it := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := r.process(gctx, it); err != nil {
				return err
			}
			r.report(it, len(items))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := summarize(items)
	summary.ClassifierCalls = r.ClassifierCalls()
	summary.Duration = time.Since(start)
	return summary, nil
}

// process steps it until it reaches a terminal state
func (r *Runner) process(ctx context.Context, it *item) error {
	for !it.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.step(ctx, it)
	}
	r.recordOutcome(it)
	return nil
}

// step performs exactly one transition
func (r *Runner) step(ctx context.Context, it *item) {
	from := it.state

	switch it.state {
	case StateDiscovered:
		data, err := os.ReadFile(it.asset.Path)
		if err != nil {
			it.err = fmt.Errorf("failed to read file: %w", err)
			it.state = StateReadFailed
			break
		}
		it.data = data
		it.fingerprint = fingerprint.Bytes(data)
		if info, ok := country.ResolveFolder(it.asset.RelativeFolderPath); ok {
			it.country = &info
		}
		it.state = StateHashed

	case StateHashed:
		result, ok, err := r.cache.Get(ctx, it.fingerprint)
		if err != nil {
			slog.Warn("Cache lookup failed, classifying", "path", it.asset.RelativePath(), "error", err)
		}
		if ok {
			it.result = result
			it.cacheHit = true
			it.state = StateCacheHit
		} else {
			it.state = StateClassifying
		}

	case StateClassifying:
		result, err := r.classify(ctx, it)
		if err != nil {
			it.err = err
			it.state = StateClassificationFailed
			break
		}
		it.result = result
		it.state = StateClassified

	case StateClassificationFailed:
		slog.Warn("Classification failed, using fallback", "path", it.asset.RelativePath(), "error", it.err)
		it.result = models.FallbackClassification(it.asset.Filename)
		it.fallback = true
		it.err = nil
		it.state = StateFallbackClassified

	case StateCacheHit, StateClassified, StateFallbackClassified:
		it.result = forceCategory(it.asset, it.result)
		if r.opts.DryRun {
			it.state = StateDryRunRecorded
		} else {
			it.state = StatePublishing
		}

	case StatePublishing:
		receipt, reused, err := r.publish(ctx, it)
		if err != nil {
			it.err = err
			it.state = StatePublishFailed
			break
		}
		it.receipt = receipt
		it.reused = reused
		it.state = StatePublished
	}

	slog.Debug("Image state changed", "path", it.asset.RelativePath(), "from", from, "to", it.state)
}

// classify runs the classifier under the retry policy. Concurrent callers for
// the same fingerprint share one classification.
func (r *Runner) classify(ctx context.Context, it *item) (models.ClassificationResult, error) {
	v, err, shared := r.flight.Do(it.fingerprint, func() (any, error) {
		// a worker that finished the same content earlier already cached it
		if result, ok, err := r.cache.Get(ctx, it.fingerprint); err == nil && ok {
			return result, nil
		}

		start := time.Now()
		result, err := retry.Do(ctx, r.opts.Retry, "classify "+it.asset.RelativePath(), func(ctx context.Context) (models.ClassificationResult, error) {
			r.classifierCalls.Add(1)
			return r.classifier.Classify(ctx, it.data)
		})
		if r.metrics != nil {
			r.metrics.ObserveClassify(time.Since(start))
		}
		if err != nil {
			return nil, err
		}

		if err := r.cache.Put(ctx, it.fingerprint, result); err != nil {
			slog.Error("Failed to persist classification", "fingerprint", it.fingerprint, "error", err)
		}
		return result, nil
	})
	if err != nil {
		return models.ClassificationResult{}, err
	}
	if shared {
		slog.Debug("Classification shared between workers", "fingerprint", it.fingerprint)
	}
	return v.(models.ClassificationResult), nil
}

func (r *Runner) publish(ctx context.Context, it *item) (publish.Receipt, bool, error) {
	if r.publisher == nil {
		return publish.Receipt{}, false, errors.New("no content store configured")
	}

	key := publishindex.Key{
		Fingerprint: it.fingerprint,
		FolderPath:  it.asset.RelativeFolderPath,
		Filename:    it.asset.Filename,
		Dataset:     r.opts.Dataset,
	}

	digest := publish.MetadataDigest(it.result, it.country)

	if r.index != nil && !r.opts.Republish {
		entry, ok, err := r.index.Lookup(ctx, key)
		if err != nil {
			slog.Warn("Publish index lookup failed", "path", it.asset.RelativePath(), "error", err)
		}
		switch {
		case ok && entry.Metadata == digest:
			return publish.Receipt{AssetID: entry.AssetID, DocumentID: entry.DocumentID, PublicURL: entry.PublicURL}, true, nil
		case ok:
			slog.Info("Metadata changed since last publish, republishing", "path", it.asset.RelativePath(), "document_id", entry.DocumentID)
		}
	}

	receipt, err := r.publisher.Publish(ctx, publish.Request{
		Asset:       it.asset,
		Fingerprint: it.fingerprint,
		Data:        it.data,
		Result:      it.result,
		Country:     it.country,
	})
	if err != nil {
		return publish.Receipt{}, false, err
	}

	if r.index != nil {
		if err := r.index.Record(ctx, publishindex.Entry{
			Key:        key,
			AssetID:    receipt.AssetID,
			DocumentID: receipt.DocumentID,
			PublicURL:  receipt.PublicURL,
			Metadata:   digest,
		}); err != nil {
			slog.Warn("Failed to record publish", "path", it.asset.RelativePath(), "error", err)
		}
	}

	return receipt, false, nil
}

// forceCategory applies folder conventions that override the model's verdict
func forceCategory(asset models.ImageAsset, result models.ClassificationResult) models.ClassificationResult {
	for _, segment := range country.Segments(asset.RelativeFolderPath) {
		switch country.Normalize(segment) {
		case "coach", "coaches":
			result.Category = models.CategoryCoach
			return result
		}
	}
	return result
}

func (r *Runner) recordOutcome(it *item) {
	it.data = nil
	if r.metrics == nil {
		return
	}

	switch {
	case it.state == StateReadFailed:
	case it.cacheHit:
		r.metrics.IncClassification(metrics.SourceCache)
	case it.fallback:
		r.metrics.IncClassification(metrics.SourceFallback)
	default:
		r.metrics.IncClassification(metrics.SourceModel)
	}

	switch it.state {
	case StateDryRunRecorded:
		r.metrics.IncImage(metrics.OutcomeDryRun)
	case StatePublished:
		if it.reused {
			r.metrics.IncImage(metrics.OutcomeReused)
		} else {
			r.metrics.IncImage(metrics.OutcomePublished)
		}
	default:
		r.metrics.IncImage(metrics.OutcomeFailed)
	}
}
