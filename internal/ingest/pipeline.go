package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/chunker"
	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/keyword"
	"github.com/kailas-cloud/jobrag/internal/logger"
)

// Embedder encodes document chunks into vectors.
type Embedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex receives embedded chunks.
type VectorIndex interface {
	Upsert(ctx context.Context, ids []string, vectors [][]float32, documents []string, metadatas []domain.Metadata) error
}

// Config holds chunking and batching parameters for one ingestion run.
type Config struct {
	MaxChars    int
	Overlap     int
	BatchSize   int
	Concurrency int // embed+upsert workers; <=0 means 1
	SnapshotDir string
}

// Pipeline chunks job descriptions, embeds them in parallel batches and
// writes both the vector index and the keyword snapshot.
type Pipeline struct {
	embedder Embedder
	vectors  VectorIndex
	cfg      Config
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(embedder Embedder, vectors VectorIndex, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pipeline{embedder: embedder, vectors: vectors, cfg: cfg}
}

// Run ingests the records: every non-empty description is split into
// chunks with ids "{record_id}-{seq}", each batch is embedded and upserted,
// and the full chunk corpus is saved as the keyword snapshot. Returns the
// number of chunks indexed.
func (p *Pipeline) Run(ctx context.Context, jobs []JobRecord) (int, error) {
	log := logger.FromContext(ctx)

	var (
		ids       []string
		documents []string
		metadatas []domain.Metadata
	)
	for _, job := range jobs {
		if job.Description == "" {
			continue
		}
		chunks := chunker.Split(job.Description, p.cfg.MaxChars, p.cfg.Overlap)
		for seq, text := range chunks {
			ids = append(ids, fmt.Sprintf("%s-%d", job.JobID, seq))
			documents = append(documents, text)
			metadatas = append(metadatas, domain.Metadata{
				domain.MetaJobID:           job.JobID,
				domain.MetaJobTitle:        job.Title,
				domain.MetaCompany:         job.Company,
				domain.MetaLocation:        job.Location,
				domain.MetaLevel:           job.Level,
				domain.MetaCategory:        job.Category,
				domain.MetaTags:            job.Tags,
				domain.MetaPublicationDate: job.PublicationDate,
			})
		}
	}
	log.Info("chunked job descriptions",
		zap.Int("jobs", len(jobs)), zap.Int("chunks", len(ids)))

	if err := p.indexBatches(ctx, ids, documents, metadatas); err != nil {
		return 0, err
	}

	snapshotPath := filepath.Join(p.cfg.SnapshotDir, keyword.SnapshotFile)
	if err := keyword.Save(snapshotPath, ids, documents, metadatas); err != nil {
		return 0, fmt.Errorf("save keyword snapshot: %w", err)
	}
	log.Info("saved keyword snapshot", zap.String("path", snapshotPath))

	return len(ids), nil
}

// indexBatches embeds and upserts chunks in BatchSize slices across a
// bounded worker pool. Batches are independent so completion order does not
// matter; the first error wins and the rest finish or bail on it.
func (p *Pipeline) indexBatches(ctx context.Context, ids, documents []string, metadatas []domain.Metadata) error {
	if len(ids) == 0 {
		return nil
	}

	pool, err := ants.NewPool(p.cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for start := 0; start < len(ids); start += p.cfg.BatchSize {
		end := min(len(ids), start+p.cfg.BatchSize)
		batchIDs := ids[start:end]
		batchDocs := documents[start:end]
		batchMeta := metadatas[start:end]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil || failed() {
				return
			}
			vectors, err := p.embedder.EmbedPassages(ctx, batchDocs)
			if err != nil {
				fail(fmt.Errorf("embed batch at %d: %w", start, err))
				return
			}
			if err := p.vectors.Upsert(ctx, batchIDs, vectors, batchDocs, batchMeta); err != nil {
				fail(fmt.Errorf("upsert batch at %d: %w", start, err))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit batch at %d: %w", start, submitErr))
			break
		}
	}

	wg.Wait()
	return firstErr
}
