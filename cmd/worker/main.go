package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketgen/internal/adapter/repo"
	"marketgen/internal/infra"
	"marketgen/internal/pipeline"
	"marketgen/internal/providers/adintel"
	"marketgen/internal/providers/genai"
	"marketgen/internal/providers/scrape"
	"marketgen/internal/providers/vision"
	"marketgen/internal/queue"
	"marketgen/internal/storage"
	"marketgen/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := infra.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("worker: migrations failed")
		}
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	jobs := repo.NewJobRepository(runner)
	artifacts := repo.NewArtifactRepository(runner)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	store, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	gemini := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Str("model", gemini.Model()).Msg("worker: gemini api key missing, using synthetic generation")
	}
	scraper := scrape.NewClient(scrape.Options{BaseURL: cfg.ScraperBaseURL, HTTPClient: httpClient, Logger: &logger})
	isolator := vision.NewClient(vision.Options{BaseURL: cfg.VisionBaseURL, HTTPClient: httpClient, Logger: &logger})
	adlib := adintel.NewClient(adintel.Options{BaseURL: cfg.AdIntelBaseURL, HTTPClient: httpClient, Logger: &logger})

	collab := pipeline.Collaborators{
		Discoverer:  scraper,
		Scraper:     scraper,
		Text:        gemini,
		Images:      gemini,
		Video:       gemini,
		Vision:      isolator,
		AdIntel:     adlib,
		Store:       store,
		Artifacts:   artifacts,
		FanOutLimit: cfg.FanOutLimit,
	}

	q := queue.Open(runner, logger, queue.Options{
		Visibility: cfg.VisibilityTimeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})
	defer q.Close()

	reporter := pipeline.NewReporter(jobs, logger)
	exec := pipeline.NewExecutor(jobs, reporter, collab.Build, logger, cfg.StepTimeout)

	w := worker.New(q, exec, jobs, logger, worker.Options{
		Concurrency:       cfg.WorkerConcurrency,
		PollInterval:      cfg.PollInterval,
		ReconcileInterval: cfg.ReconcileInterval,
		ReconcileAfter:    cfg.ReconcileAfter,
	})
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
