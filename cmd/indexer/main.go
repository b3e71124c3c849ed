// Command indexer builds the vector index and keyword snapshot from a job
// postings CSV export. Run it before serving queries and after every
// dataset refresh.
package main

import (
	"context"
	"flag"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/config"
	dbRedis "github.com/kailas-cloud/jobrag/internal/db/redis"
	"github.com/kailas-cloud/jobrag/internal/ingest"
	logpkg "github.com/kailas-cloud/jobrag/internal/logger"
	"github.com/kailas-cloud/jobrag/internal/metrics"
	"github.com/kailas-cloud/jobrag/internal/repository/vectorindex"
	openaiTransport "github.com/kailas-cloud/jobrag/internal/transport/openai"
)

func main() {
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	dataPath := flag.String("data", "./data/jobs.csv", "path to the CSV dataset")
	outDir := flag.String("out-dir", cfg.Index.SnapshotDir, "keyword snapshot directory")
	indexName := flag.String("index", cfg.Index.Name, "vector index name")
	concurrency := flag.Int("concurrency", runtime.NumCPU(), "parallel embed+upsert workers")
	recreate := flag.Bool("recreate", false, "drop and recreate the vector index before ingesting")
	flag.Parse()

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ingestion run",
		zap.String("data", *dataPath),
		zap.String("index", *indexName),
		zap.String("snapshot_dir", *outDir),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create Redis store", zap.Error(err))
	}
	defer store.Close()

	ctx := logpkg.ContextWithLogger(context.Background(), logger)
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Redis not ready", zap.Error(err))
	}

	metrics.RegisterEmbeddingMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
		Logger:    logger,
	})

	// The index is created on first run; its vector dimension comes from the
	// provider so config never drifts from the model.
	dim := cfg.Embedding.Dimensions
	if dim <= 0 {
		dim, err = embedder.Dimension(ctx)
		if err != nil {
			logger.Fatal("Failed to probe embedding dimension", zap.Error(err))
		}
		logger.Info("Probed embedding dimension", zap.Int("dim", dim))
	}

	vectors := vectorindex.New(store, vectorindex.Config{
		IndexName:   *indexName,
		KeyPrefix:   cfg.Index.KeyPrefix,
		HNSWM:       cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if *recreate {
		if err := vectors.Recreate(ctx, dim); err != nil {
			logger.Fatal("Failed to recreate vector index", zap.Error(err))
		}
		logger.Info("Recreated vector index", zap.String("index", *indexName))
	} else if err := vectors.Ensure(ctx, dim); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	jobs, err := ingest.ReadJobs(*dataPath)
	if err != nil {
		logger.Fatal("Failed to read dataset", zap.Error(err))
	}
	logger.Info("Loaded job records", zap.Int("count", len(jobs)))

	pipeline := ingest.NewPipeline(embedder, vectors, ingest.Config{
		MaxChars:    cfg.Chunking.MaxChars,
		Overlap:     cfg.Chunking.Overlap,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: *concurrency,
		SnapshotDir: *outDir,
	})

	start := time.Now()
	count, err := pipeline.Run(ctx, jobs)
	if err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}

	total, err := vectors.Count(ctx)
	if err != nil {
		logger.Warn("Failed to count indexed chunks", zap.Error(err))
		total = count
	}

	logger.Info("Ingestion complete",
		zap.Int("chunks_indexed", count),
		zap.Int("index_total", total),
		zap.String("index", *indexName),
		zap.Duration("elapsed", time.Since(start)),
	)
}
