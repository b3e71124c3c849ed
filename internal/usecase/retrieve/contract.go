package retrieve

import (
	"context"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Embedder vectorizes queries into embeddings.
type Embedder interface {
	EmbedQuery(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex answers top-N similarity queries, one ranked list per vector.
type VectorIndex interface {
	Query(ctx context.Context, vectors [][]float32, n int) ([][]domain.RetrievedChunk, error)
}

// KeywordIndex answers top-N lexical (BM25) queries over the chunk corpus.
type KeywordIndex interface {
	Query(query string, topK int) []domain.RetrievedChunk
}
