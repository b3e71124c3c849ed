package answer

import (
	"context"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Retriever returns ranked chunk candidates for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, useHybrid bool) ([]domain.RetrievedChunk, error)
}

// Reranker reorders candidates by cross-encoder relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []domain.RetrievedChunk) ([]domain.RetrievedChunk, error)
}

// Generator produces an answer from a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Cache stores serialized responses keyed by request fingerprint. Both
// operations are best-effort; implementations fail open.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}
