package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Rendering
	TargetChunkBytes       int
	SmallDocumentThreshold int
	DiskStagingCeiling     int
	MaxInMemoryBytes       int
	HeapSoftLimit          uint64
	MaxRetries             int
	RetryDelay             time.Duration
	ChunkTimeout           time.Duration
	RenderTimeout          time.Duration
	RenderMode             string
	RenderConcurrency      int
	IndependentChunks      bool
	CriticalSelectors      []string
	AnnotateBoundaries     bool
	TempDir                string
	SampleInterval         time.Duration

	// Cache
	CacheEnabled       bool
	CacheTTL           time.Duration
	CompressionEnabled bool
	CacheBackend       string
	CachePath          string
	CacheSweepInterval time.Duration

	// Job state
	JobTTL time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; variables already set take precedence.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:     envOr("PORT", "8090"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		APIKey: os.Getenv("DOCRENDER_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		TargetChunkBytes:       envInt("TARGET_CHUNK_BYTES", 1<<20),
		SmallDocumentThreshold: envInt("SMALL_DOCUMENT_THRESHOLD", 0),
		DiskStagingCeiling:     envInt("DISK_STAGING_CEILING", 5<<20),
		MaxInMemoryBytes:       envInt("MAX_IN_MEMORY_BYTES", 64<<20),
		HeapSoftLimit:          uint64(envInt64("HEAP_SOFT_LIMIT", 0)),
		MaxRetries:             envInt("MAX_RETRIES", 3),
		RetryDelay:             envDuration("RETRY_DELAY", 500*time.Millisecond),
		ChunkTimeout:           envDuration("CHUNK_TIMEOUT", 30*time.Second),
		RenderTimeout:          envDuration("RENDER_TIMEOUT", 60*time.Second),
		RenderMode:             envOr("RENDER_MODE", "full"),
		RenderConcurrency:      envInt("RENDER_CONCURRENCY", 1),
		IndependentChunks:      envBool("INDEPENDENT_CHUNKS", false),
		CriticalSelectors:      envList("CRITICAL_SELECTORS"),
		AnnotateBoundaries:     envBool("ANNOTATE_BOUNDARIES", false),
		TempDir:                os.Getenv("TEMP_DIR"),
		SampleInterval:         envDuration("SAMPLE_INTERVAL", 100*time.Millisecond),

		CacheEnabled:       envBool("CACHE_ENABLED", true),
		CacheTTL:           envDuration("CACHE_TTL", 1*time.Hour),
		CompressionEnabled: envBool("COMPRESSION_ENABLED", true),
		CacheBackend:       envOr("CACHE_BACKEND", "memory"),
		CachePath:          envOr("CACHE_PATH", "./data/docrender-cache.db"),
		CacheSweepInterval: envDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.TargetChunkBytes <= 0 {
		cfg.TargetChunkBytes = 1 << 20
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RenderConcurrency <= 0 {
		cfg.RenderConcurrency = 1
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 1 * time.Hour
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks everything the HTTP service needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCRENDER_API_KEY is required")
	}
	return c.ValidateRender()
}

// ValidateRender checks the render and cache settings only; the CLI needs
// no API key.
func (c Config) ValidateRender() error {
	if c.SmallDocumentThreshold > c.DiskStagingCeiling {
		return fmt.Errorf("SMALL_DOCUMENT_THRESHOLD (%d) exceeds DISK_STAGING_CEILING (%d)", c.SmallDocumentThreshold, c.DiskStagingCeiling)
	}
	switch c.RenderMode {
	case "full", "streaming":
	default:
		return fmt.Errorf("RENDER_MODE must be full or streaming, got %q", c.RenderMode)
	}
	switch c.CacheBackend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or sqlite, got %q", c.CacheBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
