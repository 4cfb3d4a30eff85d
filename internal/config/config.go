// Package config resolves runtime settings from an optional .env file and
// the process environment. Command-line flags are applied on top by the
// binaries.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/sentiment"
)

// Environment variable names.
const (
	EnvAPIKey         = "ASSEMBLYAI_API_KEY"
	EnvBaseURL        = "ASSEMBLYAI_BASE_URL"
	EnvPollInterval   = "CALL_SENTIMENT_POLL_INTERVAL"
	EnvPollTimeout    = "CALL_SENTIMENT_POLL_TIMEOUT"
	EnvMaxRetries     = "CALL_SENTIMENT_MAX_RETRIES"
	EnvWorkDir        = "CALL_SENTIMENT_WORK_DIR"
	EnvStore          = "CALL_SENTIMENT_STORE"
	EnvTable          = "CALL_SENTIMENT_TABLE"
	EnvBucket         = "CALL_SENTIMENT_BUCKET"
	EnvEventBus       = "CALL_SENTIMENT_EVENT_BUS"
	EnvScoreReference = "CALL_SENTIMENT_SCORE_REFERENCE"
	EnvHighlights     = "CALL_SENTIMENT_HIGHLIGHTS"
	EnvGeminiKey      = "GEMINI_API_KEY"
	EnvGeminiModel    = "CALL_SENTIMENT_GEMINI_MODEL"
	EnvSSMKeyParam    = "SSM_API_KEY_PARAM"
	EnvWorkerLambda   = "WORKER_LAMBDA_ARN"
)

// Store backends.
const (
	StoreNone     = "none"
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StoreS3       = "s3"
)

const (
	DefaultPollTimeout = 30 * time.Minute
	DefaultMaxRetries  = 3
	DefaultGeminiModel = "gemini-3-flash-preview"
)

// Config holds every setting the binaries need. The API keys are not
// part of it; they are resolved by internal/auth.
type Config struct {
	BaseURL        string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	MaxRetries     int
	WorkDir        string
	Store          string
	Table          string
	Bucket         string
	EventBus       string
	ScoreReference float64
	Highlights     bool
	GeminiModel    string
	SSMKeyParam    string

	// WorkerLambda is the function the API Lambda hands analyses to.
	WorkerLambda string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:        assemblyai.DefaultBaseURL,
		PollInterval:   assemblyai.DefaultPollInterval,
		PollTimeout:    DefaultPollTimeout,
		MaxRetries:     DefaultMaxRetries,
		WorkDir:        os.TempDir(),
		Store:          StoreNone,
		ScoreReference: sentiment.ScoreReference,
		GeminiModel:    DefaultGeminiModel,
	}
}

// Load reads the given .env files (default ".env"; missing files are
// ignored), then overlays the process environment on Default.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("file", f).Msg("No .env file found, using OS environment")
				continue
			}
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
		log.Debug().Str("file", f).Msg("Loaded .env file")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()
	var err error

	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if cfg.PollInterval, err = durationEnv(EnvPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.PollTimeout, err = durationEnv(EnvPollTimeout, cfg.PollTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetries, err = intEnv(EnvMaxRetries, cfg.MaxRetries); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(EnvWorkDir); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	cfg.Table = os.Getenv(EnvTable)
	cfg.Bucket = os.Getenv(EnvBucket)
	cfg.EventBus = os.Getenv(EnvEventBus)
	if cfg.ScoreReference, err = floatEnv(EnvScoreReference, cfg.ScoreReference); err != nil {
		return Config{}, err
	}
	if cfg.Highlights, err = boolEnv(EnvHighlights, cfg.Highlights); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(EnvGeminiModel); v != "" {
		cfg.GeminiModel = v
	}
	cfg.SSMKeyParam = os.Getenv(EnvSSMKeyParam)
	cfg.WorkerLambda = os.Getenv(EnvWorkerLambda)

	return cfg, cfg.Validate()
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", EnvPollInterval, c.PollInterval)
	}
	if c.PollTimeout < 0 {
		return fmt.Errorf("%s must not be negative, got %s", EnvPollTimeout, c.PollTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%s must not be negative, got %d", EnvMaxRetries, c.MaxRetries)
	}
	switch c.Store {
	case StoreNone, StoreMemory:
	case StoreDynamoDB:
		if c.Table == "" {
			return fmt.Errorf("store %q requires %s", c.Store, EnvTable)
		}
	case StoreS3:
		if c.Bucket == "" {
			return fmt.Errorf("store %q requires %s", c.Store, EnvBucket)
		}
	default:
		return fmt.Errorf("unknown %s %q (want none, memory, dynamodb or s3)", EnvStore, c.Store)
	}
	if c.WorkerLambda != "" && c.Store != StoreDynamoDB && c.Store != StoreS3 {
		return fmt.Errorf("%s requires a shared store (dynamodb or s3), got %q", EnvWorkerLambda, c.Store)
	}
	return nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}
