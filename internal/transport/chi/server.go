// Package chi exposes the question-answering pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/logger"
	"github.com/kailas-cloud/jobrag/internal/usecase/answer"
)

const (
	minQueryLen    = 3
	maxTopK        = 20
	snippetMaxLen  = 240
	errCodeBadReq  = "bad_request"
	errCodeIntErr  = "internal_error"
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// Defaults are the server-side values applied when a request leaves an
// optional parameter unset.
type Defaults struct {
	TopK      int
	UseHybrid bool
	UseRerank bool
}

// health reports backend connectivity.
type health interface {
	Ping(ctx context.Context) error
}

// Server handles the query API.
type Server struct {
	answers  *answer.Service
	db       health
	defaults Defaults
	logger   *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(answers *answer.Service, db health, defaults Defaults, logger *zap.Logger) *Server {
	return &Server{answers: answers, db: db, defaults: defaults, logger: logger}
}

// QueryRequest is the POST /api/query body. Optional fields default
// server-side: nil top_k uses the configured depth, nil use_hybrid the
// configured mode, nil use_rerank whether a reranker is configured.
type QueryRequest struct {
	Query     string `json:"query"`
	TopK      *int   `json:"top_k"`
	UseHybrid *bool  `json:"use_hybrid"`
	UseRerank *bool  `json:"use_rerank"`
}

// JobHit is one retrieved chunk in API form with a bounded snippet.
type JobHit struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	JobTitle string  `json:"job_title"`
	Company  string  `json:"company"`
	Location string  `json:"location"`
	Level    string  `json:"level"`
	Snippet  string  `json:"snippet"`
}

// QueryResponse is the POST /api/query response body.
type QueryResponse struct {
	Answer string   `json:"answer"`
	Hits   []JobHit `json:"hits"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryJobs handles POST /api/query.
func (s *Server) QueryJobs(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadReq, "invalid request body: "+err.Error())
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if len(req.Query) < minQueryLen {
		writeError(w, http.StatusBadRequest, errCodeBadReq, "query must be at least 3 characters")
		return
	}

	topK := s.defaults.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 || topK > maxTopK {
		writeError(w, http.StatusBadRequest, errCodeBadReq, "top_k must be between 1 and 20")
		return
	}

	useHybrid := s.defaults.UseHybrid
	if req.UseHybrid != nil {
		useHybrid = *req.UseHybrid
	}
	useRerank := s.defaults.UseRerank
	if req.UseRerank != nil {
		useRerank = *req.UseRerank
	}

	result, err := s.answers.Query(r.Context(), answer.Request{
		Query:     req.Query,
		TopK:      topK,
		UseHybrid: useHybrid,
		UseRerank: useRerank,
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("query pipeline failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errCodeIntErr, "internal error")
		return
	}

	hits := make([]JobHit, len(result.Chunks))
	for i, c := range result.Chunks {
		hits[i] = toHit(c)
	}
	writeJSON(w, http.StatusOK, QueryResponse{Answer: result.Answer, Hits: hits})
}

// HealthCheck handles GET /health. Redis being down degrades the status
// but the process stays up.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := statusHealthy
	checks := map[string]string{"redis": "ok"}
	httpStatus := http.StatusOK

	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Warn("health check: redis unreachable", zap.Error(err))
		status = statusDegraded
		checks["redis"] = "unreachable"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func toHit(c domain.RetrievedChunk) JobHit {
	snippet := c.Text
	if r := []rune(snippet); len(r) > snippetMaxLen {
		snippet = string(r[:snippetMaxLen]) + "..."
	}
	return JobHit{
		ID:       c.ID,
		Score:    c.Score,
		JobTitle: c.Metadata[domain.MetaJobTitle],
		Company:  c.Metadata[domain.MetaCompany],
		Location: c.Metadata[domain.MetaLocation],
		Level:    c.Metadata[domain.MetaLevel],
		Snippet:  snippet,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
