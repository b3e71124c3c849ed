package retrieve

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// Service orchestrates vector and keyword lookups for a query and merges
// them into one ranked candidate list. Constructed once and shared across
// concurrent requests; all per-request state is local.
type Service struct {
	embedder Embedder
	vectors  VectorIndex
	keywords KeywordIndex // nil disables hybrid silently
	topK     int
	alpha    float64
}

// New creates a retrieval service. keywords may be nil when no keyword
// snapshot was available; hybrid requests then degrade to vector-only.
func New(embedder Embedder, vectors VectorIndex, keywords KeywordIndex, topK int, alpha float64) *Service {
	return &Service{
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		topK:     topK,
		alpha:    alpha,
	}
}

// HybridAvailable reports whether a keyword index was loaded.
func (s *Service) HybridAvailable() bool { return s.keywords != nil }

// Retrieve returns at most the configured topK chunks for the query.
// Vector search always runs; with useHybrid and a loaded keyword index the
// two ranked lists are fused, otherwise vector results return unchanged.
func (s *Service) Retrieve(ctx context.Context, query string, useHybrid bool) ([]domain.RetrievedChunk, error) {
	mode := "vector"
	if useHybrid && s.keywords != nil {
		mode = "hybrid"
	}
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	vectorHits, err := s.vectorSearch(ctx, query)
	if err != nil {
		return nil, err
	}

	if mode != "hybrid" {
		return vectorHits, nil
	}

	keywordHits := s.keywords.Query(query, s.topK)
	return fuse(vectorHits, keywordHits, s.alpha, s.topK), nil
}

func (s *Service) vectorSearch(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	embeddings, err := s.embedder.EmbedQuery(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.vectors.Query(ctx, embeddings, s.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
