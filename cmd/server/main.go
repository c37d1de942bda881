package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docrender/internal/api"
	"github.com/dgallion1/docrender/internal/compiler"
	"github.com/dgallion1/docrender/internal/config"
	"github.com/dgallion1/docrender/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize renderer and cache.
	renderer, closeCache, err := pipeline.Setup(ctx, cfg, compiler.NewTemplate(nil), log)
	if err != nil {
		log.Error("failed to set up renderer", "error", err)
		os.Exit(1)
	}

	// Initialize job pool.
	orch := pipeline.NewOrchestrator(cfg, renderer, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// Streaming renders may run up to the render timeout.
		WriteTimeout: cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		cancel()
		if err := closeCache(); err != nil {
			log.Warn("failed to close render cache", "error", err)
		}
	}()

	log.Info("starting docrender", "port", cfg.Port, "workers", cfg.WorkerCount, "mode", cfg.RenderMode)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
