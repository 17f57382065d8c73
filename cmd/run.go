package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailhead-retreats/mediaingest/internal/cache"
	"github.com/trailhead-retreats/mediaingest/internal/config"
	"github.com/trailhead-retreats/mediaingest/internal/gemini"
	"github.com/trailhead-retreats/mediaingest/internal/ingest"
	"github.com/trailhead-retreats/mediaingest/internal/ledger"
	"github.com/trailhead-retreats/mediaingest/internal/metrics"
	"github.com/trailhead-retreats/mediaingest/internal/objectstore"
	"github.com/trailhead-retreats/mediaingest/internal/ollama"
	"github.com/trailhead-retreats/mediaingest/internal/openai"
	"github.com/trailhead-retreats/mediaingest/internal/providers"
	"github.com/trailhead-retreats/mediaingest/internal/publish"
	"github.com/trailhead-retreats/mediaingest/internal/publishindex"
	"github.com/trailhead-retreats/mediaingest/internal/retry"
	"github.com/trailhead-retreats/mediaingest/internal/sanity"
	"github.com/trailhead-retreats/mediaingest/internal/vision"
)

func newRunCmd() *cobra.Command {
	var overrides config.Config
	var resultsFile string
	var failuresFile string
	var reportFile string
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "run <rootDirectory>",
		Short: "Classify and publish every image under a directory",
		Long: `Walk rootDirectory, classify each .jpg, .jpeg, .png and .webp file and
publish it with its metadata. Files and folders whose names start with a dot
are skipped, along with everything inside them.

Country names are taken from folder names. Images under a "coach" or
"coaches" folder are always categorized as coach.

The results and failure ledgers are rewritten at the end of every completed
run. An interrupted run writes no ledgers, but every classification made so
far stays in the cache.`,
		Example: `  # Preview classifications without publishing
  mediaingest run ./photos --dry-run

  # Publish to a staging dataset with four workers
  mediaingest run ./photos --dataset staging --concurrency 4

  # Use a local Ollama model and keep a YAML report
  mediaingest run ./photos --provider ollama --model llava:13b --report run-report.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(&overrides)
			if err != nil {
				return err
			}
			return executeRun(cmd.Context(), cmd, cfg, args[0], ingest.Outputs{
				ResultsFile:  resultsFile,
				FailuresFile: failuresFile,
				ReportFile:   reportFile,
				MetricsFile:  metricsFile,
			})
		},
	}

	cmd.Flags().BoolVar(&overrides.DryRun, "dry-run", false, "Classify and print metadata without publishing")
	cmd.Flags().StringVar(&overrides.Store.Sanity.Dataset, "dataset", "", "Destination dataset (default from SANITY_DATASET, then \"production\")")
	cmd.Flags().IntVar(&overrides.Concurrency, "concurrency", 0, "Number of images processed in parallel (default from INGEST_CONCURRENCY, then 1)")
	cmd.Flags().BoolVar(&overrides.Republish, "republish", false, "Publish again even if the publish index has a record")
	cmd.Flags().StringVar(&overrides.Cache.File, "cache-file", "", "Classification cache file (default from CACHE_FILE)")
	cmd.Flags().StringVar(&overrides.Vision.Provider, "provider", "", "Vision provider: openai, gemini or ollama (default from VISION_PROVIDER)")
	cmd.Flags().StringVar(&overrides.Vision.Model, "model", "", "Vision model (default depends on provider)")
	cmd.Flags().StringVar(&resultsFile, "results-file", ledger.DefaultResultsFile, "Results ledger output")
	cmd.Flags().StringVar(&failuresFile, "failures-file", ledger.DefaultFailuresFile, "Failure ledger output")
	cmd.Flags().StringVar(&reportFile, "report", "", "Optional YAML run report")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Optional Prometheus textfile")

	return cmd
}

func executeRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, root string, out ingest.Outputs) error {
	slog.Info("Starting ingest run",
		"root", root,
		"dataset", cfg.Dataset(),
		"provider", cfg.Vision.Provider,
		"model", cfg.Vision.Model,
		"store", cfg.Store.Backend,
		"dry_run", cfg.DryRun)

	store, closeStore, err := openCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	classifier := vision.New(provider, vision.Options{
		Model:             cfg.Vision.Model,
		MaxDimension:      cfg.Vision.MaxDimension,
		JPEGQuality:       cfg.Vision.JPEGQuality,
		MaxTokens:         cfg.Vision.MaxTokens,
		Temperature:       0.1,
		RequestsPerMinute: cfg.Vision.RequestsPerMinute,
		Timeout:           3 * time.Minute,
	})

	recorder := metrics.New()
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		OnRetry:     recorder.OnRetry,
	}

	var publisher ingest.Publisher
	if !cfg.DryRun {
		contentStore, err := newContentStore(ctx, cfg)
		if err != nil {
			return err
		}
		publisher = publish.New(contentStore, policy, cfg.Dataset())
	}

	runner := ingest.New(store, classifier, publisher, ingest.Options{
		DryRun:      cfg.DryRun,
		Dataset:     cfg.Dataset(),
		Concurrency: cfg.Concurrency,
		Republish:   cfg.Republish,
		Retry:       policy,
		Progress:    cmd.OutOrStdout(),
	}).WithMetrics(recorder)

	if !cfg.DryRun && cfg.PublishIndex != "" {
		index, err := publishindex.Open(ctx, cfg.PublishIndex)
		if err != nil {
			return err
		}
		defer index.Close()
		runner.WithIndex(index)
	}

	summary, err := runner.Run(ctx, root)
	if err != nil {
		return err
	}

	out.Run = ledger.RunInfo{
		Root:        root,
		Dataset:     cfg.Dataset(),
		Provider:    cfg.Vision.Provider,
		Model:       cfg.Vision.Model,
		DryRun:      cfg.DryRun,
		Concurrency: cfg.Concurrency,
	}
	if err := ingest.WriteOutputs(summary, out, recorder); err != nil {
		return err
	}

	ingest.PrintSummary(cmd.OutOrStdout(), summary, cfg.DryRun)
	return summary.Err()
}

func openCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		store, err := cache.OpenRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := cache.OpenFile(cfg.Cache.File)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func newProvider(cfg *config.Config) (providers.Provider, error) {
	switch cfg.Vision.Provider {
	case config.ProviderOpenAI:
		return openai.New(cfg.Vision.OpenAIKey, cfg.Vision.OpenAIBaseURL), nil
	case config.ProviderGemini:
		return gemini.New(cfg.Vision.GeminiKey), nil
	case config.ProviderOllama:
		return ollama.New(cfg.Vision.OllamaURL), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", config.ErrConfiguration, cfg.Vision.Provider)
	}
}

func newContentStore(ctx context.Context, cfg *config.Config) (publish.ContentStore, error) {
	switch cfg.Store.Backend {
	case config.StoreSanity:
		s := cfg.Store.Sanity
		return sanity.New(s.ProjectID, s.Dataset, s.Token, s.APIVersion), nil
	case config.StoreS3:
		s := cfg.Store.S3
		bucket, err := objectstore.NewMinioBucket(ctx, s.Endpoint, s.AccessKey, s.SecretKey, s.Bucket, s.Region, s.UseSSL, s.PublicURL)
		if err != nil {
			return nil, err
		}
		return objectstore.New(bucket, cfg.Dataset()), nil
	case config.StoreAzure:
		a := cfg.Store.Azure
		bucket, err := objectstore.NewAzureBucket(ctx, a.ConnectionString, a.Container)
		if err != nil {
			return nil, err
		}
		return objectstore.New(bucket, cfg.Dataset()), nil
	default:
		return nil, fmt.Errorf("%w: unknown content store %s", config.ErrConfiguration, cfg.Store.Backend)
	}
}
