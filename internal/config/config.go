// Package config resolves run settings from defaults, the environment and
// command-line overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrConfiguration is wrapped by every validation failure
var ErrConfiguration = errors.New("configuration error")

// Content stores
const (
	StoreSanity = "sanity"
	StoreS3     = "s3"
	StoreAzure  = "azure"
)

// Vision providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Cache backends
const (
	CacheFile  = "file"
	CacheRedis = "redis"
)

const (
	DefaultDataset      = "production"
	DefaultCacheFile    = "classification-cache.json"
	DefaultPublishIndex = "publish-index.db"
	DefaultRedisURL     = "redis://localhost:6379/0"
	DefaultContainer    = "media"
	DefaultAPIVersion   = "v2021-06-07"
)

type SanityConfig struct {
	ProjectID  string
	Dataset    string
	Token      string
	APIVersion string
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

type AzureConfig struct {
	ConnectionString string
	Container        string
}

type StoreConfig struct {
	Backend string
	Sanity  SanityConfig
	S3      S3Config
	Azure   AzureConfig
}

type VisionConfig struct {
	Provider          string
	Model             string
	OpenAIKey         string
	OpenAIBaseURL     string
	GeminiKey         string
	OllamaURL         string
	MaxDimension      int
	JPEGQuality       int
	MaxTokens         int
	RequestsPerMinute int
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type CacheConfig struct {
	Backend  string
	File     string
	RedisURL string
}

// Config is everything a run needs
type Config struct {
	DryRun       bool
	Republish    bool
	Concurrency  int
	PublishIndex string

	Store  StoreConfig
	Vision VisionConfig
	Retry  RetryConfig
	Cache  CacheConfig
}

// Dataset is the content store namespace records are published into
func (c *Config) Dataset() string {
	return c.Store.Sanity.Dataset
}

// Load applies defaults, then environment variables, then the non-zero
// fields of overrides, and validates the result.
func Load(overrides *Config) (*Config, error) {
	c := &Config{}
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return nil, err
	}
	if overrides != nil {
		c.Merge(overrides)
	}
	if c.Vision.Model == "" {
		c.Vision.Model = DefaultModel(c.Vision.Provider)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultModel is the model used when VISION_MODEL is unset
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-1.5-flash"
	case ProviderOllama:
		return "llava:13b"
	default:
		return "gpt-4o"
	}
}

// CachePath resolves the classification cache file without validating
// anything else
func CachePath(override string) string {
	if override != "" {
		return override
	}
	if v := os.Getenv("CACHE_FILE"); v != "" {
		return v
	}
	return DefaultCacheFile
}

func (c *Config) loadDefaults() {
	c.Concurrency = 1
	c.PublishIndex = DefaultPublishIndex

	c.Store.Backend = StoreSanity
	c.Store.Sanity.Dataset = DefaultDataset
	c.Store.Sanity.APIVersion = DefaultAPIVersion
	c.Store.S3.UseSSL = true
	c.Store.Azure.Container = DefaultContainer

	c.Vision.Provider = ProviderOpenAI
	c.Vision.MaxDimension = 1568
	c.Vision.JPEGQuality = 85
	c.Vision.MaxTokens = 500

	c.Retry.MaxAttempts = 3
	c.Retry.BaseDelay = 2 * time.Second

	c.Cache.Backend = CacheFile
	c.Cache.File = DefaultCacheFile
	c.Cache.RedisURL = DefaultRedisURL
}

func (c *Config) loadEnv() error {
	var errs []error

	setString(&c.Store.Backend, "CONTENT_STORE")
	setString(&c.Store.Sanity.ProjectID, "SANITY_PROJECT_ID")
	setString(&c.Store.Sanity.Dataset, "SANITY_DATASET")
	setString(&c.Store.Sanity.Token, "SANITY_TOKEN")
	setString(&c.Store.Sanity.APIVersion, "SANITY_API_VERSION")
	setString(&c.Store.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.Store.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Store.S3.SecretKey, "S3_SECRET_KEY")
	setString(&c.Store.S3.Bucket, "S3_BUCKET")
	setString(&c.Store.S3.Region, "S3_REGION")
	setString(&c.Store.S3.PublicURL, "S3_PUBLIC_URL")
	errs = append(errs, setBool(&c.Store.S3.UseSSL, "S3_USE_SSL"))
	setString(&c.Store.Azure.ConnectionString, "AZURE_STORAGE_CONNECTION_STRING")
	setString(&c.Store.Azure.Container, "AZURE_STORAGE_CONTAINER")

	setString(&c.Vision.Provider, "VISION_PROVIDER")
	setString(&c.Vision.Model, "VISION_MODEL")
	setString(&c.Vision.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.Vision.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.Vision.GeminiKey, "GEMINI_API_KEY")
	setString(&c.Vision.OllamaURL, "OLLAMA_URL")
	errs = append(errs,
		setInt(&c.Vision.MaxDimension, "VISION_MAX_DIMENSION"),
		setInt(&c.Vision.JPEGQuality, "VISION_JPEG_QUALITY"),
		setInt(&c.Vision.MaxTokens, "VISION_MAX_TOKENS"),
		setInt(&c.Vision.RequestsPerMinute, "VISION_REQUESTS_PER_MINUTE"),
		setInt(&c.Retry.MaxAttempts, "RETRY_MAX_ATTEMPTS"),
		setDuration(&c.Retry.BaseDelay, "RETRY_BASE_DELAY"),
		setInt(&c.Concurrency, "INGEST_CONCURRENCY"),
	)

	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.File, "CACHE_FILE")
	setString(&c.Cache.RedisURL, "REDIS_URL")

	// an explicitly empty PUBLISH_INDEX turns the index off
	if v, ok := os.LookupEnv("PUBLISH_INDEX"); ok {
		c.PublishIndex = strings.TrimSpace(v)
	}

	return errors.Join(errs...)
}

// Merge overwrites non-zero fields from overlay. Only the fields exposed as
// command-line flags are considered.
func (c *Config) Merge(overlay *Config) {
	if overlay.DryRun {
		c.DryRun = true
	}
	if overlay.Republish {
		c.Republish = true
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.Store.Sanity.Dataset != "" {
		c.Store.Sanity.Dataset = overlay.Store.Sanity.Dataset
	}
	if overlay.Cache.File != "" {
		c.Cache.File = overlay.Cache.File
	}
	if overlay.Vision.Provider != "" {
		if overlay.Vision.Provider != c.Vision.Provider && overlay.Vision.Model == "" {
			// the env model belongs to the other provider
			c.Vision.Model = ""
		}
		c.Vision.Provider = overlay.Vision.Provider
	}
	if overlay.Vision.Model != "" {
		c.Vision.Model = overlay.Vision.Model
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.Retry.BaseDelay < 0 {
		problems = append(problems, "RETRY_BASE_DELAY must not be negative")
	}
	if c.Vision.MaxDimension < 1 {
		problems = append(problems, "VISION_MAX_DIMENSION must be positive")
	}
	if c.Vision.JPEGQuality < 1 || c.Vision.JPEGQuality > 100 {
		problems = append(problems, "VISION_JPEG_QUALITY must be between 1 and 100")
	}
	if c.Vision.RequestsPerMinute < 0 {
		problems = append(problems, "VISION_REQUESTS_PER_MINUTE must not be negative")
	}

	switch c.Vision.Provider {
	case ProviderOpenAI:
		if c.Vision.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderGemini:
		if c.Vision.GeminiKey == "" {
			problems = append(problems, "GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderOllama:
	default:
		problems = append(problems, fmt.Sprintf("unknown vision provider %q (supported: openai, gemini, ollama)", c.Vision.Provider))
	}

	switch c.Cache.Backend {
	case CacheFile:
		if c.Cache.File == "" {
			problems = append(problems, "CACHE_FILE must not be empty")
		}
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			problems = append(problems, "REDIS_URL is required for the redis cache")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown cache backend %q (supported: file, redis)", c.Cache.Backend))
	}

	if c.Store.Sanity.Dataset == "" {
		problems = append(problems, "dataset must not be empty")
	}

	switch c.Store.Backend {
	case StoreSanity:
		// dry runs still name the project; only the write token is optional
		if c.Store.Sanity.ProjectID == "" {
			problems = append(problems, "SANITY_PROJECT_ID is required")
		}
		if !c.DryRun && c.Store.Sanity.Token == "" {
			problems = append(problems, "SANITY_TOKEN is required")
		}
	case StoreS3:
		if !c.DryRun {
			for name, v := range map[string]string{
				"S3_ENDPOINT":   c.Store.S3.Endpoint,
				"S3_ACCESS_KEY": c.Store.S3.AccessKey,
				"S3_SECRET_KEY": c.Store.S3.SecretKey,
				"S3_BUCKET":     c.Store.S3.Bucket,
			} {
				if v == "" {
					problems = append(problems, name+" is required")
				}
			}
		}
	case StoreAzure:
		if !c.DryRun && c.Store.Azure.ConnectionString == "" {
			problems = append(problems, "AZURE_STORAGE_CONNECTION_STRING is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown content store %q (supported: sanity, s3, azure)", c.Store.Backend))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func setString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s must be an integer, got %q", ErrConfiguration, name, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, name string) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s must be a boolean, got %q", ErrConfiguration, name, v)
	}
	*dst = b
	return nil
}

// setDuration accepts Go durations ("1500ms") or bare seconds ("2")
func setDuration(dst *time.Duration, name string) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return nil
	}
	return fmt.Errorf("%w: %s must be a duration, got %q", ErrConfiguration, name, v)
}
