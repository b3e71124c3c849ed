// Package rerank calls a cross-encoder model served behind a TEI-style
// /rerank HTTP endpoint to rescore an already-retrieved candidate set.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Client scores (query, passage) pairs via HTTP.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// Config holds the rerank endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New creates a rerank client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model string   `json:"model,omitempty"`
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank scores every (query, chunk.text) pair, replaces each chunk's score
// with the model relevance and returns the set sorted descending. The output
// has the same length as the input; an empty input returns an empty result
// without a network call.
func (c *Client) Rerank(ctx context.Context, query string, chunks []domain.RetrievedChunk) ([]domain.RetrievedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %v: %w", err, domain.ErrRerankProviderError)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank API error %d: %s: %w",
			resp.StatusCode, string(msg), domain.ErrRerankProviderError)
	}

	var scores []rerankScore
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", domain.ErrRerankProviderError)
	}
	if len(scores) != len(chunks) {
		return nil, fmt.Errorf("rerank returned %d scores for %d texts: %w",
			len(scores), len(chunks), domain.ErrRerankProviderError)
	}

	out := make([]domain.RetrievedChunk, len(chunks))
	for i, s := range scores {
		if s.Index < 0 || s.Index >= len(chunks) {
			return nil, fmt.Errorf("rerank score index %d out of range: %w",
				s.Index, domain.ErrRerankProviderError)
		}
		ch := chunks[s.Index]
		ch.Score = s.Score
		out[i] = ch
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	return out, nil
}
