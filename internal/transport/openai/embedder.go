package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// Asymmetric-retrieval prefixes used by e5-family models.
const (
	queryPrefix   = "query:"
	passagePrefix = "passage:"
)

// Embedder batch-encodes text via an OpenAI-compatible embeddings API
// (e.g. an e5 model served behind TEI or Nebius). Output vectors are
// L2-normalized; e5-family models additionally get the query:/passage:
// prefix convention applied.
type Embedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	batchSize int
	usePrefix bool
	logger    *zap.Logger
}

// EmbedderConfig holds the embedding provider settings.
type EmbedderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
	Logger    *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *EmbedderConfig) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     openai.EmbeddingModel(cfg.Model),
		batchSize: batchSize,
		usePrefix: strings.Contains(strings.ToLower(cfg.Model), "e5"),
		logger:    logger,
	}
}

// EmbedPassages encodes document chunks ("passage:" intent).
func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, passagePrefix, "passage")
}

// EmbedQuery encodes search queries ("query:" intent).
func (e *Embedder) EmbedQuery(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, queryPrefix, "query")
}

// Dimension returns the embedding vector length by encoding a probe string.
func (e *Embedder) Dimension(ctx context.Context) (int, error) {
	vecs, err := e.EmbedPassages(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 {
		return 0, fmt.Errorf("empty probe response: %w", domain.ErrEmbeddingProviderError)
	}
	return len(vecs[0]), nil
}

// embed batch-encodes texts, preserving input order across batches.
// Empty input returns an empty result without an API call.
func (e *Embedder) embed(ctx context.Context, texts []string, prefix, intent string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prefixed := e.applyPrefix(texts, prefix)
	out := make([][]float32, len(prefixed))

	for start := 0; start < len(prefixed); start += e.batchSize {
		end := min(len(prefixed), start+e.batchSize)
		batch := prefixed[start:end]

		begin := time.Now()
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:          batch,
			Model:          e.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		duration := time.Since(begin)

		if err != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
			return nil, parseAPIError(err)
		}
		if len(resp.Data) != len(batch) {
			metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
			return nil, fmt.Errorf("embedding response size %d for batch of %d: %w",
				len(resp.Data), len(batch), domain.ErrEmbeddingProviderError)
		}

		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "success").Inc()
		metrics.EmbeddingRequestDuration.WithLabelValues(string(e.model)).Observe(duration.Seconds())
		metrics.EmbeddingTextsTotal.WithLabelValues(string(e.model), intent).Add(float64(len(batch)))

		for _, d := range resp.Data {
			out[start+d.Index] = l2Normalize(d.Embedding)
		}
	}

	return out, nil
}

// applyPrefix prepends the intent prefix for e5-family models unless the
// text already carries one.
func (e *Embedder) applyPrefix(texts []string, prefix string) []string {
	if !e.usePrefix {
		return texts
	}
	prefixed := make([]string, len(texts))
	for i, text := range texts {
		stripped := strings.TrimSpace(text)
		lowered := strings.ToLower(stripped)
		if strings.HasPrefix(lowered, queryPrefix) || strings.HasPrefix(lowered, passagePrefix) {
			prefixed[i] = stripped
		} else {
			prefixed[i] = prefix + " " + stripped
		}
	}
	return prefixed
}

// l2Normalize scales a vector to unit length. Zero vectors pass through.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
