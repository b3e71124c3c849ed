package answer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/logger"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// fallbackAnswer replaces the generated answer when the LLM call fails for
// any reason; retrieval results still reach the caller.
const fallbackAnswer = "LLM not configured. Showing top matching jobs based on retrieval. " +
	"Set LLM_API_KEY to enable generated answers."

// Request carries resolved query parameters. Callers apply their own
// defaults before building one; the service treats every field as final.
type Request struct {
	Query     string
	TopK      int
	UseHybrid bool
	UseRerank bool
}

// Result is the answer plus the chunks it was grounded on, in rank order.
type Result struct {
	Answer string                  `json:"answer"`
	Chunks []domain.RetrievedChunk `json:"chunks"`
}

// Service runs the full question-answering pipeline: cache lookup,
// retrieval, optional reranking, prompt assembly and generation.
type Service struct {
	retriever Retriever
	reranker  Reranker // nil disables reranking
	generator Generator
	cache     Cache // nil disables response caching
}

// New creates an answer service. reranker and cache may be nil; the
// corresponding stages are then skipped.
func New(retriever Retriever, reranker Reranker, generator Generator, cache Cache) *Service {
	return &Service{
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		cache:     cache,
	}
}

// RerankAvailable reports whether a reranker was configured.
func (s *Service) RerankAvailable() bool { return s.reranker != nil }

// Query answers the request. A cached result short-circuits the pipeline;
// otherwise candidates are retrieved, optionally reranked, truncated to
// TopK and fed to the generator. Generation failures degrade to a fixed
// fallback answer rather than failing the request.
func (s *Service) Query(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContext(ctx)
	key := Fingerprint(req.Query, req.TopK, req.UseHybrid, req.UseRerank)

	if s.cache != nil {
		if blob, ok := s.cache.Get(ctx, key); ok {
			var cached Result
			if err := json.Unmarshal(blob, &cached); err == nil {
				return &cached, nil
			}
			log.Warn("discarding undecodable cached response", zap.String("key", key))
		}
	}

	chunks, err := s.retriever.Retrieve(ctx, req.Query, req.UseHybrid)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if len(chunks) > 0 && req.UseRerank && s.reranker != nil {
		reranked, err := s.reranker.Rerank(ctx, req.Query, chunks)
		if err != nil {
			// Reranking is an optional quality boost, not a hard
			// dependency; fall back to the fused order.
			log.Warn("rerank failed, keeping retrieval order", zap.Error(err))
		} else {
			chunks = reranked
		}
	}
	if len(chunks) > req.TopK {
		chunks = chunks[:req.TopK]
	}

	prompt := BuildPrompt(req.Query, chunks)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.LLMFallbacksTotal.Inc()
		log.Warn("generation failed, serving fallback answer", zap.Error(err))
		text = fallbackAnswer
	}

	result := &Result{Answer: text, Chunks: chunks}
	if s.cache != nil {
		if blob, err := json.Marshal(result); err == nil {
			s.cache.Set(ctx, key, blob)
		}
	}
	return result, nil
}
