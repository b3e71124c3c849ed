package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/config"
	dbRedis "github.com/kailas-cloud/jobrag/internal/db/redis"
	"github.com/kailas-cloud/jobrag/internal/keyword"
	logpkg "github.com/kailas-cloud/jobrag/internal/logger"
	"github.com/kailas-cloud/jobrag/internal/metrics"
	"github.com/kailas-cloud/jobrag/internal/repository/respcache"
	"github.com/kailas-cloud/jobrag/internal/repository/vectorindex"
	chiTransport "github.com/kailas-cloud/jobrag/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/jobrag/internal/transport/openai"
	"github.com/kailas-cloud/jobrag/internal/transport/rerank"
	"github.com/kailas-cloud/jobrag/internal/usecase/answer"
	"github.com/kailas-cloud/jobrag/internal/usecase/retrieve"
	"github.com/kailas-cloud/jobrag/internal/version"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting jobrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
		zap.String("index", cfg.Index.Name),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create Redis store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Redis not ready", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterQueryMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
		Logger:    logger,
	})

	vectors := vectorindex.New(store, vectorindex.Config{
		IndexName:   cfg.Index.Name,
		KeyPrefix:   cfg.Index.KeyPrefix,
		HNSWM:       cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := vectors.Ensure(ctx, cfg.Embedding.Dimensions); err != nil {
		logger.Fatal("Vector index unavailable", zap.Error(err))
	}

	// A missing snapshot disables hybrid retrieval, it does not block startup;
	// the indexer writes one on the next ingestion run.
	var keywords retrieve.KeywordIndex
	snapshotPath := filepath.Join(cfg.Index.SnapshotDir, keyword.SnapshotFile)
	kwIndex, err := keyword.Load(snapshotPath)
	switch {
	case err == nil:
		keywords = kwIndex
		logger.Info("Loaded keyword snapshot",
			zap.String("path", snapshotPath), zap.Int("chunks", kwIndex.Len()))
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("Keyword snapshot not found, hybrid retrieval disabled",
			zap.String("path", snapshotPath))
	default:
		logger.Fatal("Failed to load keyword snapshot", zap.Error(err))
	}

	retriever := retrieve.New(embedder, vectors, keywords, cfg.Retrieval.TopK, cfg.Retrieval.HybridAlpha)

	// An empty rerank model leaves the stage disabled.
	var reranker answer.Reranker
	if cfg.Rerank.Model != "" {
		reranker = rerank.New(&rerank.Config{
			BaseURL: cfg.Rerank.BaseURL,
			APIKey:  cfg.Rerank.APIKey,
			Model:   cfg.Rerank.Model,
			Timeout: time.Duration(cfg.Rerank.TimeoutSec) * time.Second,
		})
		logger.Info("Reranker enabled", zap.String("model", cfg.Rerank.Model))
	}

	generator := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
	if cfg.LLM.APIKey == "" {
		logger.Warn("LLM API key not set, answers will use the retrieval-only fallback")
	}

	var cache answer.Cache
	if cfg.Cache.TTLSec > 0 {
		cache = respcache.New(store, cfg.Index.KeyPrefix, time.Duration(cfg.Cache.TTLSec)*time.Second)
	}

	answers := answer.New(retriever, reranker, generator, cache)

	server := chiTransport.NewServer(answers, store, chiTransport.Defaults{
		TopK:      cfg.Retrieval.TopK,
		UseHybrid: cfg.Retrieval.UseHybrid && retriever.HybridAvailable(),
		UseRerank: reranker != nil,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Post("/api/query", server.QueryJobs)
	r.Get("/health", server.HealthCheck)
	r.Get("/metrics", server.Metrics)

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
