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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/aldercy/wyrd/internal/api"
	"github.com/aldercy/wyrd/internal/checksum"
	"github.com/aldercy/wyrd/internal/generator"
	"github.com/aldercy/wyrd/internal/graphservice"
	"github.com/aldercy/wyrd/internal/integrity"
	"github.com/aldercy/wyrd/internal/registry"
	"github.com/aldercy/wyrd/internal/sse"
	"github.com/aldercy/wyrd/internal/storage"
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
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize the snapshot store.
	var store storage.Provider
	var snapshotPath string
	switch cfg.Store.Driver {
	case StoreDriverFile:
		fileStore, err := storage.NewFile(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
		store = fileStore
		snapshotPath = fileStore.Path()
	default:
		sqlStore, err := storage.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		store = sqlStore
	}
	defer store.Close()

	// Load the persisted registry snapshot.
	snapshot, err := store.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	reg := registry.FromMap(snapshot)
	logger.Info("Registry loaded", slog.Int("objects", reg.Len()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// External generator collaborator, unless an embedder supplied one.
	gen := app.generator
	if gen == nil && cfg.Generator.Enabled() {
		gen = generator.NewOpenAI(cfg.Generator.APIKey, cfg.Generator.BaseURL, cfg.Generator.Model)
	}

	// Build the graph service and router.
	svc := graphservice.NewService(reg, store, integrity.NewChecker(), gen, broker.PublishObjectEvent)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the snapshot document for external replacement (file driver only).
	if snapshotPath != "" {
		g.Go(func() error {
			return storage.Watch(gCtx, snapshotPath, 200*time.Millisecond, logger, func() {
				fresh, loadErr := store.Load()
				if loadErr != nil {
					logger.Warn("snapshot reload failed", slog.String("error", loadErr.Error()))
					return
				}
				// Our own saves also fire the watcher; skip unchanged content.
				if checksum.SumJSON(fresh) == checksum.SumJSON(svc.Snapshot(gCtx)) {
					return
				}
				if replaceErr := svc.Replace(gCtx, fresh); replaceErr != nil {
					logger.Warn("snapshot replace failed", slog.String("error", replaceErr.Error()))
					return
				}
				logger.Info("registry reloaded from snapshot", slog.Int("objects", len(fresh)))
				broker.Publish(sse.Event{Type: "graph.updated", Data: map[string]string{}})
			})
		})
	}

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
