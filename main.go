package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/tridentlabs/trident/internal/activities"
	"github.com/tridentlabs/trident/internal/catalog"
	"github.com/tridentlabs/trident/internal/config"
	"github.com/tridentlabs/trident/internal/fetch"
	"github.com/tridentlabs/trident/internal/health"
	"github.com/tridentlabs/trident/internal/httpapi"
	"github.com/tridentlabs/trident/internal/llm"
	"github.com/tridentlabs/trident/internal/registry"
	"github.com/tridentlabs/trident/internal/search"
	"github.com/tridentlabs/trident/internal/session"
	"github.com/tridentlabs/trident/internal/streaming"
	temporaladapter "github.com/tridentlabs/trident/internal/temporal"
	"github.com/tridentlabs/trident/internal/tracing"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without traces", zap.Error(err))
	}

	// ------------------------------------------------------------------
	// Storage: filesystem session store + run catalog.
	// ------------------------------------------------------------------
	sessions, err := session.NewStore(cfg.Sessions.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.Error(err))
	}

	cat, err := catalog.Open(cfg.Catalog.Driver, cfg.Catalog.DSN, logger)
	if err != nil {
		logger.Fatal("Failed to open run catalog", zap.Error(err))
	}
	defer cat.Close()

	// ------------------------------------------------------------------
	// Outbound clients: search, page fetcher (+ optional Redis cache),
	// generation service.
	// ------------------------------------------------------------------
	searchClient := search.NewClient(search.Config{
		Endpoint:      cfg.Search.Endpoint,
		APIKey:        cfg.Search.APIKey,
		Timeout:       cfg.Search.Timeout,
		RatePerSecond: cfg.Search.RatePerSecond,
	})

	var pageCache fetch.Cache
	var redisClient *redis.Client
	if cfg.Fetch.CacheAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Fetch.CacheAddr})
		pageCache = fetch.NewRedisCache(redisClient, cfg.Fetch.CacheTTL, logger)
		logger.Info("Page cache enabled", zap.String("addr", cfg.Fetch.CacheAddr))
	}
	fetcher := fetch.NewFetcher(fetch.Config{
		Timeout:        cfg.Fetch.Timeout,
		UserAgent:      cfg.Fetch.UserAgent,
		MaxContentSize: cfg.Fetch.MaxContentSize,
	}, pageCache, logger)

	llmClient := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	})

	// ------------------------------------------------------------------
	// Hot-reloadable research limits.
	// ------------------------------------------------------------------
	limitsPath := os.Getenv("TRIDENT_LIMITS_FILE")
	if limitsPath == "" {
		limitsPath = "config/limits.yaml"
	}
	limits, err := config.NewManager(limitsPath, cfg.Research, logger)
	if err != nil {
		logger.Fatal("Failed to create limits manager", zap.Error(err))
	}
	if err := limits.Start(); err != nil {
		logger.Warn("Limits hot-reload unavailable, using static values",
			zap.String("path", limitsPath), zap.Error(err))
	} else {
		defer limits.Stop()
	}

	// ------------------------------------------------------------------
	// Temporal worker.
	// ------------------------------------------------------------------
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporaladapter.NewZapAdapter(logger),
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	acts := activities.NewActivities(activities.Deps{
		Search:   searchClient,
		Fetcher:  fetcher,
		LLM:      llmClient,
		Sessions: sessions,
		Catalog:  cat,
		Streams:  streaming.Get(),
		Limits:   limits.Current,
		Logger:   logger,
	})

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Temporal.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Temporal.MaxConcurrentWorkflowTasks,
	})
	reg := registry.NewResearchRegistry(acts, logger)
	if err := reg.RegisterWorkflows(w); err != nil {
		logger.Fatal("Failed to register workflows", zap.Error(err))
	}
	if err := reg.RegisterActivities(w); err != nil {
		logger.Fatal("Failed to register activities", zap.Error(err))
	}

	workerStopCh := make(chan interface{})
	go func() {
		if err := w.Run(workerStopCh); err != nil {
			logger.Fatal("Temporal worker failed", zap.Error(err))
		}
	}()
	logger.Info("Temporal worker started",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("namespace", cfg.Temporal.Namespace),
	)

	// ------------------------------------------------------------------
	// Health checks.
	// ------------------------------------------------------------------
	hm := health.NewManager(logger)
	hm.Register(health.NewCatalogChecker(cat))
	hm.Register(health.NewSessionDirChecker(cfg.Sessions.Dir))
	hm.Register(health.NewLLMChecker(cfg.LLM.BaseURL))
	if redisClient != nil {
		hm.Register(health.NewCacheChecker(redisClient))
	}
	hm.Start(ctx)
	defer hm.Stop()

	// ------------------------------------------------------------------
	// HTTP surfaces: API on the service port, Prometheus on its own.
	// ------------------------------------------------------------------
	mux := http.NewServeMux()
	httpapi.NewResearchHandler(temporalClient, cat, cfg.Temporal.TaskQueue, logger).RegisterRoutes(mux)
	httpapi.NewStreamingHandler(streaming.Get(), logger).RegisterRoutes(mux)
	health.NewHTTPHandler(hm, logger).RegisterRoutes(mux)

	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler: mux,
	}
	go func() {
		logger.Info("HTTP API listening", zap.Int("port", cfg.Service.HTTPPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("Metrics listening", zap.Int("port", cfg.Service.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// ------------------------------------------------------------------
	// Shutdown.
	// ------------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	close(workerStopCh)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown error", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info("Shutdown complete")
}
