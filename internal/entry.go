// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/bridge"
	"github.com/starford/ansuz/internal/glossary"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/linker"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Linker engine plus the bulk-scan bridge.
	engine := linker.NewEngine(cfg.Matcher.Policy(), cfg.Bridge.CacheSize, logger)
	br := bridge.New(engine, store, db, logger, cfg.Bridge.ChunkSize, cfg.Bridge.Workers, func(p bridge.Progress) {
		broker.PublishScanProgress(p.Done, p.Total)
	})

	// rebuild builds the term index, publishes a fresh snapshot, and runs a
	// full bulk scan against it.
	rebuild := func(rctx context.Context) {
		terms, err := glossary.Build(store, cfg.Vault.Rules(), cfg.Matcher.Policy(), logger)
		if err != nil {
			logger.Error("glossary build failed", slog.String("error", err.Error()))
			return
		}
		snap := engine.Rebuild(terms)
		broker.PublishRebuild(snap.Version, len(terms))
		if err := br.Run(rctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("bulk scan failed", slog.String("error", err.Error()))
		}
	}

	// Build service and router.
	svc := noteservice.New(store, db, engine, logger)
	handlers := api.NewHandlers(svc, rebuild, logger)
	router := api.NewRouter(handlers, broker, cfg.Auth.Mode, cfg.Auth.Token, logger)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: router,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial glossary build and bulk scan.
	g.Go(func() error {
		rebuild(gCtx)
		return nil
	})

	// Rebuild debouncer: vault changes funnel through trigger; a burst of
	// events collapses into one rebuild.
	trigger := make(chan struct{}, 1)
	g.Go(func() error {
		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case <-gCtx.Done():
				if timer != nil {
					timer.Stop()
				}
				return nil
			case <-trigger:
				if timer == nil {
					timer = time.NewTimer(500 * time.Millisecond)
					timerC = timer.C
				} else {
					timer.Reset(500 * time.Millisecond)
				}
			case <-timerC:
				rebuild(gCtx)
			}
		}
	})

	// Start file watcher with SSE + rebuild callback.
	g.Go(func() error {
		err := index.Watch(gCtx, db, store, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
		if err != nil {
			logger.Warn("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server instead of the HTTP stack. Logs go to
// stderr so stdout stays clean for the MCP transport.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	engine := linker.NewEngine(cfg.Matcher.Policy(), cfg.Bridge.CacheSize, logger)
	terms, err := glossary.Build(store, cfg.Vault.Rules(), cfg.Matcher.Policy(), logger)
	if err != nil {
		return fmt.Errorf("glossary build: %w", err)
	}
	engine.Rebuild(terms)

	svc := noteservice.New(store, db, engine, logger)
	return mcpserver.New(svc).ServeStdio()
}
