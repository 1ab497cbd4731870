package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/socialchef/recipe-gantt/internal/cache"
	"github.com/socialchef/recipe-gantt/internal/config"
	"github.com/socialchef/recipe-gantt/internal/logger"
	"github.com/socialchef/recipe-gantt/internal/metrics"
	"github.com/socialchef/recipe-gantt/internal/pipeline"
	"github.com/socialchef/recipe-gantt/internal/sentry"
	"github.com/socialchef/recipe-gantt/internal/services/inference"
	"github.com/socialchef/recipe-gantt/internal/services/scraper"
	"github.com/socialchef/recipe-gantt/internal/services/storage"
	"github.com/socialchef/recipe-gantt/internal/telemetry"
	"github.com/socialchef/recipe-gantt/internal/worker"
)

func main() {
	defer sentry.Recover()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required for the worker")
	}

	// Initialize telemetry
	shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName+"-worker", cfg.ServiceVersion, cfg.Env,
		cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	} else {
		defer shutdown(ctx)
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName+"-worker", cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Initialize business metrics
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	slog.SetDefault(logger.New(cfg.Env))

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Load the model once; every job reuses it.
	var modelPath string
	if inference.NeedsModelFile(cfg) {
		slog.Info("Loading model...", "provider", cfg.Model.Provider)
		modelPath, err = inference.NewModelResolver(cfg).Resolve(ctx)
		if err != nil {
			log.Fatalf("Failed to resolve model: %v", err)
		}
	}

	var sink storage.Sink
	if cfg.JobOutputPrefix != "" {
		sink, err = storage.NewSink(ctx, cfg.JobOutputPrefix, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("Failed to create output sink: %v", err)
		}
	}

	workerMetrics, err := worker.NewWorkerMetrics()
	if err != nil {
		slog.Warn("Failed to init worker metrics", "error", err)
	}

	processor := pipeline.NewProcessor(
		scraper.NewFromConfig(cfg.Scraper, cache.NewRecipeCache(rdb)),
		inference.NewProvider(cfg, modelPath),
		inference.ParamsFromConfig(cfg.Model),
	)
	ganttProcessor := worker.NewGanttProcessor(
		processor,
		worker.NewJobStore(rdb, worker.DefaultJobTTL),
		sink,
		cfg.JobOutputPrefix,
		workerMetrics,
	)
	processor.OnProgress(ganttProcessor.Progress)

	// Asynq server
	srv, err := worker.NewServer(cfg.RedisURL, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutting down worker...")
		srv.Shutdown()
	}()

	slog.Info("Starting worker", "concurrency", cfg.WorkerConcurrency, "provider", cfg.Model.Provider)

	if err := srv.Run(worker.NewServeMux(ganttProcessor)); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
