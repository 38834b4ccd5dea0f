// Command lectern is the main entry point for the lectern text-location
// server. It indexes books and locates noisy speech-to-text snippets in them,
// served either over HTTP (+WebSocket) or as an MCP stdio server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/health"
	"github.com/lecternhq/lectern/internal/library"
	"github.com/lecternhq/lectern/internal/mcpserver"
	"github.com/lecternhq/lectern/internal/observe"
	"github.com/lecternhq/lectern/internal/server"
	"github.com/lecternhq/lectern/pkg/snapshot"
	snapfile "github.com/lecternhq/lectern/pkg/snapshot/file"
	snappg "github.com/lecternhq/lectern/pkg/snapshot/postgres"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	mcpMode := flag.Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lectern: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lectern: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lectern starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"mcp", *mcpMode,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "lectern",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Snapshot store ────────────────────────────────────────────────────────
	store, storeCheck, closeStore, err := buildStore(ctx, cfg.Snapshots)
	if err != nil {
		slog.Error("failed to create snapshot store", "err", err)
		return 1
	}
	defer closeStore()

	// ── Library ───────────────────────────────────────────────────────────────
	lib := library.New(store, library.LocatorOptions{
		WindowSize: cfg.Locator.WindowSizeWords,
		StepSize:   cfg.Locator.StepSizeWords,
		TopK:       cfg.Locator.TopK,
	}, metrics)
	if err := lib.Restore(ctx); err != nil {
		slog.Error("failed to restore library", "err", err)
		return 1
	}
	if err := preloadBooks(ctx, lib, cfg.Books); err != nil {
		slog.Error("failed to preload books", "err", err)
		return 1
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	if *mcpMode {
		slog.Info("serving MCP over stdio")
		if err := mcpserver.New(lib, version).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mcp server error", "err", err)
			return 1
		}
		slog.Info("goodbye")
		return 0
	}

	printStartupSummary(cfg, lib)
	return serveHTTP(ctx, cfg, lib, metrics, storeCheck)
}

// buildStore creates the configured snapshot backend. It returns the store, a
// readiness checker for it, and a close function.
func buildStore(ctx context.Context, cfg config.SnapshotsConfig) (snapshot.Store, health.Checker, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.SnapshotPostgres:
		pg, err := snappg.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, health.Checker{}, noop, fmt.Errorf("postgres backend: %w", err)
		}
		check := health.Checker{Name: "snapshots", Check: pg.Ping}
		return pg, check, pg.Close, nil

	case config.SnapshotNone:
		check := health.Checker{Name: "snapshots", Check: func(context.Context) error { return nil }}
		return snapshot.Discard{}, check, noop, nil

	default: // config.SnapshotFile — Validate has already defaulted the enum.
		fs, err := snapfile.New(cfg.Dir)
		if err != nil {
			return nil, health.Checker{}, noop, fmt.Errorf("file backend: %w", err)
		}
		check := health.Checker{Name: "snapshots", Check: func(ctx context.Context) error {
			_, err := fs.List(ctx)
			return err
		}}
		return fs, check, noop, nil
	}
}

// preloadBooks indexes the configured books that did not come back from
// snapshots. Already-restored ids are left untouched so a warm start does not
// re-index unchanged books.
func preloadBooks(ctx context.Context, lib *library.Library, books []config.BookConfig) error {
	for _, b := range books {
		if b.ID != "" {
			if _, err := lib.Get(b.ID); err == nil {
				slog.Debug("book already restored from snapshot", "book_id", b.ID)
				continue
			}
		}
		info, err := lib.AddFromFile(ctx, b.ID, b.Title, b.Path)
		if err != nil {
			return fmt.Errorf("preload book %q: %w", b.Path, err)
		}
		slog.Info("book preloaded", "book_id", info.ID, "title", info.Title, "words", info.WordCount)
	}
	return nil
}

// serveHTTP runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func serveHTTP(ctx context.Context, cfg *config.Config, lib *library.Library, metrics *observe.Metrics, storeCheck health.Checker) int {
	mux := http.NewServeMux()
	server.New(lib, metrics).Register(mux)
	health.New(storeCheck).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		slog.Error("http server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, lib *library.Library) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Lectern — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Snapshots       : %-19s ║\n", cfg.Snapshots.Backend)
	fmt.Printf("║  Window size     : %-19d ║\n", cfg.Locator.WindowSizeWords)
	fmt.Printf("║  Step size       : %-19d ║\n", cfg.Locator.StepSizeWords)
	fmt.Printf("║  Top-K           : %-19d ║\n", cfg.Locator.TopK)
	fmt.Printf("║  Books indexed   : %-19d ║\n", len(lib.List()))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
