package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmon/go-shopify-monitor/api"
	"github.com/shopmon/go-shopify-monitor/config"
	"github.com/shopmon/go-shopify-monitor/monitor"
	"github.com/shopmon/go-shopify-monitor/pipeline"
	"github.com/shopmon/go-shopify-monitor/scraper"
	"github.com/shopmon/go-shopify-monitor/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	listenAddr := flag.String("listen", cfg.ListenAddr, "HTTP listen address")
	database := flag.String("db", cfg.DatabaseDSN, "Sqlite database path")
	archiveFile := flag.String("archive", cfg.ArchiveFile, "Optional JSONL archive of scan results")
	enableScheduler := flag.Bool("scheduler", cfg.EnableScheduler, "Run the periodic scan scheduler")
	scanIntervalSec := flag.Int("scan-interval", int(cfg.DefaultScanInterval.Seconds()), "Default scan interval (seconds)")
	verbose := flag.Bool("v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	cfg.ListenAddr = *listenAddr
	cfg.DatabaseDSN = *database
	cfg.ArchiveFile = *archiveFile
	cfg.EnableScheduler = *enableScheduler
	cfg.DefaultScanInterval = time.Duration(*scanIntervalSec) * time.Second
	cfg.Verbose = *verbose

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("opening database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("close database", slog.Any("error", err))
		}
	}()

	sink, err := buildSink(store, cfg.ArchiveFile)
	if err != nil {
		slog.Error("creating result sink", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := scraper.NewMetrics()

	p := pipeline.NewPipeline(sink)
	p.Start(1)

	svc := monitor.NewService(cfg, store, p, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.Start(ctx)

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.NewHandler(cfg, store, svc, metrics).SetupRoutes(router)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, waiting for in-flight scans to finish")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.Any("error", err))
	}

	svc.Stop()

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("monitor stopped")
}

// buildSink persists results to the database, optionally fanned out to a
// JSONL archive.
func buildSink(store *storage.Store, archiveFile string) (pipeline.ResultSink, error) {
	dbSink := storage.NewScanSink(store)
	if archiveFile == "" {
		return dbSink, nil
	}
	archive, err := pipeline.NewArchiveWriter(archiveFile)
	if err != nil {
		return nil, err
	}
	return pipeline.NewDualSink(dbSink, archive), nil
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
