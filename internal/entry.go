// Package internal provides the application initialization and runtime logic
// for the long-running modes: the HTTP API and the MCP server.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/workbench/internal/api"
	"github.com/starford/workbench/internal/index"
	"github.com/starford/workbench/internal/itemservice"
	"github.com/starford/workbench/internal/mcpserver"
	"github.com/starford/workbench/internal/sse"
	"github.com/starford/workbench/internal/storage"
)

// NewLogger builds the root logger. Long-running modes log JSON; CLI commands
// log text.
func NewLogger(w io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenIndex opens the SQLite index configured in cfg. A relative path is
// resolved against root. It returns nil when the index is disabled.
func OpenIndex(cfg *Config, root string) (*index.DB, error) {
	p := cfg.Index.Path
	if p == "" {
		return nil, nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, filepath.FromSlash(p))
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return index.Open(p)
}

func newApplication(opts []Option, out io.Writer) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.root == "" {
		app.root = "."
	}
	if app.logger == nil {
		app.logger = NewLogger(out, app.config.App.LogLevel, true)
	}
	return app, nil
}

// open prepares the item service and, when configured, a synced index.
func (a *application) open() (*storage.FS, *itemservice.Service, *index.DB, error) {
	store, err := storage.NewFS(a.root)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}
	svc := itemservice.NewService(store, a.config.ItemServiceConfig(a.logger))

	db, err := OpenIndex(a.config, a.root)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}
	if db != nil {
		if _, err := index.Sync(db, store, a.logger); err != nil {
			a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}
	return store, svc, db, nil
}

// NewHTTPHandler builds the HTTP surface: health checks, the read-only API
// under /api and, when broker is non-nil, the change stream at /api/events.
func NewHTTPHandler(cfg *Config, svc *itemservice.Service, idx index.DocumentIndex, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if idx == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok","index":"disabled"}`))
			return
		}
		if _, err := idx.AllChecksums(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	apiRouter := api.NewRouter(svc, idx, cfg.App.Auth.AuthEnabled(), cfg.App.Auth.Token)
	if broker != nil {
		apiRouter.Get("/events", broker.ServeHTTP)
	}
	r.Mount("/api", apiRouter)
	return r
}

// Run serves the HTTP API until ctx is cancelled or a shutdown signal
// arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("root", app.root),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, svc, db, err := app.open()
	if err != nil {
		return err
	}
	var idx index.DocumentIndex
	if db != nil {
		defer db.Close()
		idx = db
	}

	var broker *sse.Broker
	if app.watch && db != nil {
		broker = sse.NewBroker(2 * time.Second)
		defer broker.Close()
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHTTPHandler(cfg, svc, idx, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if broker != nil {
		g.Go(func() error {
			return index.Watch(gCtx, db, store, store.Root(), logger, broker.PublishDocumentEvent)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}

	_, svc, db, err := app.open()
	if err != nil {
		return err
	}
	var idx index.DocumentIndex
	if db != nil {
		defer db.Close()
		idx = db
	}

	srv := mcpserver.New(svc, idx, app.version, app.logger)
	app.logger.Info("MCP server starting", slog.String("root", app.root))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
