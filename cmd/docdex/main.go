package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/config"
	logpkg "github.com/kailas-cloud/docdex/internal/logger"
	"github.com/kailas-cloud/docdex/internal/metrics"
	"github.com/kailas-cloud/docdex/internal/repository/fsys"
	"github.com/kailas-cloud/docdex/internal/repository/index"
	chiTransport "github.com/kailas-cloud/docdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/docdex/internal/transport/openai"
	"github.com/kailas-cloud/docdex/internal/usecase/ghost"
	healthuc "github.com/kailas-cloud/docdex/internal/usecase/health"
	"github.com/kailas-cloud/docdex/internal/usecase/resilience"
	searchuc "github.com/kailas-cloud/docdex/internal/usecase/search"
	"github.com/kailas-cloud/docdex/internal/version"
	"github.com/kailas-cloud/docdex/internal/worker"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docdex API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("index_addrs", cfg.Index.Addrs),
	)

	store, err := index.NewStore(index.Config{
		Addrs:      cfg.Index.Addrs,
		Password:   cfg.Index.Password,
		KeyPrefix:  cfg.Index.KeyPrefix,
		DocIndex:   cfg.Index.DocIndex,
		ChunkIndex: cfg.Index.ChunkIndex,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create index store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the index backend to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Index.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Index backend not ready", zap.Error(err))
	}
	logger.Info("Connected to index backend")

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	metrics.RegisterInferenceMetrics()

	engine := openaiTransport.NewEngine(&openaiTransport.Config{
		APIKey:         cfg.Inference.APIKey,
		BaseURL:        cfg.Inference.BaseURL,
		CPUBaseURL:     cfg.Inference.CPUBaseURL,
		EmbeddingModel: cfg.Inference.EmbeddingModel,
		RerankModel:    cfg.Inference.RerankModel,
		Dimensions:     cfg.Inference.Dimensions,
		Logger:         logger,
	})
	logger.Info("Inference engine created",
		zap.String("embedding_model", cfg.Inference.EmbeddingModel),
		zap.String("rerank_model", cfg.Inference.RerankModel),
		zap.Bool("cpu_fallback", cfg.Inference.CPUBaseURL != ""),
	)

	registry := resilience.NewRegistry(
		cfg.Resilience.FailureThreshold,
		time.Duration(cfg.Resilience.HalfOpenAfterSec)*time.Second,
	)
	exec := resilience.NewExecutor(
		registry,
		cfg.Resilience.MaxRetries,
		time.Duration(cfg.Resilience.BackoffBaseMs)*time.Millisecond,
		logger,
	)

	// Background queue for ghost cleanup jobs
	queue, err := worker.NewQueue(cfg.Ghost.CleanupWorkers, logger)
	if err != nil {
		logger.Fatal("Failed to create worker queue", zap.Error(err))
	}
	defer queue.Close()

	ghostFilter := ghost.New(
		fsys.New(logger), store, queue,
		cfg.Ghost.Concurrency,
		time.Duration(cfg.Ghost.StatTimeoutMs)*time.Millisecond,
		logger,
	)

	searchSvc := searchuc.New(store, engine, exec, searchuc.Config{
		RRFK:          cfg.Search.RRFK,
		BM25Timeout:   time.Duration(cfg.Search.BM25TimeoutMs) * time.Millisecond,
		VectorTimeout: time.Duration(cfg.Search.VectorTimeoutMs) * time.Millisecond,
		ChunkTimeout:  time.Duration(cfg.Search.ChunkTimeoutMs) * time.Millisecond,
		EmbedTimeout:  time.Duration(cfg.Search.EmbedTimeoutMs) * time.Millisecond,
	}, logger).WithGhostFilter(ghostFilter)

	healthSvc := healthuc.New(store, engine)

	server := chiTransport.NewServer(searchSvc, healthSvc, registry, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
