package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docrender/internal/cache"
	"github.com/dgallion1/docrender/internal/config"
)

// Setup builds a renderer for cfg around c: the configured cache store,
// the TTL sweeper (stopped with ctx) and the default render options. The
// returned function releases the cache store.
func Setup(ctx context.Context, cfg config.Config, c Compiler, log *slog.Logger) (*Renderer, func() error, error) {
	closeFn := func() error { return nil }
	var tc *cache.TemplateCache
	if cfg.CacheEnabled {
		store, release, err := cache.OpenStore(cfg.CacheBackend, cfg.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open render cache: %w", err)
		}
		closeFn = release
		tc = cache.New(store, cache.Options{TTL: cfg.CacheTTL, Compress: cfg.CompressionEnabled}, log)
		tc.StartSweeper(ctx, cfg.CacheSweepInterval)
		log.Info("render cache ready", "backend", cfg.CacheBackend, "ttl", cfg.CacheTTL, "compress", cfg.CompressionEnabled)
	}
	return NewRenderer(c, tc, OptionsFromConfig(cfg), log), closeFn, nil
}
