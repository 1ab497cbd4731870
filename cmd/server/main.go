package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"github.com/socialchef/recipe-gantt/internal/api"
	"github.com/socialchef/recipe-gantt/internal/cache"
	"github.com/socialchef/recipe-gantt/internal/config"
	"github.com/socialchef/recipe-gantt/internal/logger"
	"github.com/socialchef/recipe-gantt/internal/metrics"
	"github.com/socialchef/recipe-gantt/internal/middleware"
	"github.com/socialchef/recipe-gantt/internal/pipeline"
	"github.com/socialchef/recipe-gantt/internal/sentry"
	"github.com/socialchef/recipe-gantt/internal/services/inference"
	"github.com/socialchef/recipe-gantt/internal/services/scraper"
	"github.com/socialchef/recipe-gantt/internal/telemetry"
	"github.com/socialchef/recipe-gantt/internal/worker"
	"go.opentelemetry.io/otel"
)

func main() {
	defer sentry.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName+"-server", cfg.ServiceVersion, cfg.Env,
		cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName+"-server", cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Initialize business metrics
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	slog.SetDefault(logger.New(cfg.Env))

	// The synchronous endpoint runs inference in-process.
	var modelPath string
	if inference.NeedsModelFile(cfg) {
		slog.Info("Loading model...", "provider", cfg.Model.Provider)
		modelPath, err = inference.NewModelResolver(cfg).Resolve(ctx)
		if err != nil {
			log.Fatalf("Failed to resolve model: %v", err)
		}
	}
	generator := inference.NewProvider(cfg, modelPath)

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	var (
		store scraper.RecipeStore
		queue worker.Enqueuer
		jobs  api.JobStore
	)
	if rdb != nil {
		defer rdb.Close()
		store = cache.NewRecipeCache(rdb)
		jobs = worker.NewJobStore(rdb, worker.DefaultJobTTL)

		asynqClient, err := worker.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to create task client: %v", err)
		}
		defer asynqClient.Close()
		queue = asynqClient
	} else {
		slog.Warn("REDIS_URL not set: recipe cache and job queue disabled")
	}

	processor := pipeline.NewProcessor(scraper.NewFromConfig(cfg.Scraper, store), generator, inference.ParamsFromConfig(cfg.Model))
	apiServer := api.NewServer(processor, queue, jobs)

	// Router
	r := chi.NewRouter()

	// Middleware
	r.Use(sentry.HTTPMiddleware)
	r.Use(otelchi.Middleware(cfg.ServiceName+"-server",
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName+"-server", otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.APIJWTSecret == "" {
		slog.Warn("API_JWT_SECRET not set: /api routes are unauthenticated")
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.APIJWTSecret, cfg.APIJWTIssuer))
		apiServer.Routes(r)
	})

	// Generation can take minutes, so there is no write timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server", "port", cfg.Port, "provider", cfg.Model.Provider)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
