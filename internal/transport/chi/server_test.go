package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/usecase/answer"
)

type stubRetriever struct {
	chunks []domain.RetrievedChunk
	err    error
	hybrid bool
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, useHybrid bool) ([]domain.RetrievedChunk, error) {
	s.hybrid = useHybrid
	return s.chunks, s.err
}

type stubGenerator struct{ answer string }

func (s *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	if s.answer == "" {
		return "", domain.ErrLLMNotConfigured
	}
	return s.answer, nil
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

func newTestServer(retriever *stubRetriever, gen *stubGenerator, ping *stubPinger) *Server {
	svc := answer.New(retriever, nil, gen, nil)
	return NewServer(svc, ping, Defaults{TopK: 5, UseHybrid: true}, zap.NewNop())
}

func longChunk(id string, n int) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		ID:   id,
		Text: strings.Repeat("x", n),
		Metadata: domain.Metadata{
			domain.MetaJobTitle: "Backend Engineer",
			domain.MetaCompany:  "Acme",
			domain.MetaLocation: "Berlin",
			domain.MetaLevel:    "Senior",
		},
		Score: 0.8,
	}
}

func postQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.QueryJobs(rr, req)
	return rr
}

func TestQueryJobs_Success(t *testing.T) {
	retriever := &stubRetriever{chunks: []domain.RetrievedChunk{longChunk("1-0", 50)}}
	s := newTestServer(retriever, &stubGenerator{answer: "SUMMARY: found."}, nil)

	rr := postQuery(t, s, `{"query":"go backend jobs"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}

	var resp QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "SUMMARY: found." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(resp.Hits))
	}
	hit := resp.Hits[0]
	if hit.ID != "1-0" || hit.JobTitle != "Backend Engineer" || hit.Company != "Acme" ||
		hit.Location != "Berlin" || hit.Level != "Senior" {
		t.Errorf("hit fields wrong: %+v", hit)
	}
	if hit.Snippet != strings.Repeat("x", 50) {
		t.Errorf("short text must pass through unmodified, got %d chars", len(hit.Snippet))
	}
	if !retriever.hybrid {
		t.Error("default use_hybrid=true was not applied")
	}
}

func TestQueryJobs_SnippetTruncation(t *testing.T) {
	retriever := &stubRetriever{chunks: []domain.RetrievedChunk{longChunk("1-0", 500)}}
	s := newTestServer(retriever, &stubGenerator{answer: "ok"}, nil)

	rr := postQuery(t, s, `{"query":"long description"}`)
	var resp QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := strings.Repeat("x", 240) + "..."
	if resp.Hits[0].Snippet != want {
		t.Errorf("snippet length %d, want 243 with ellipsis", len(resp.Hits[0].Snippet))
	}
}

func TestQueryJobs_SnippetMultibyteTruncation(t *testing.T) {
	hit := longChunk("1-0", 0)
	hit.Text = strings.Repeat("é", 500)
	retriever := &stubRetriever{chunks: []domain.RetrievedChunk{hit}}
	s := newTestServer(retriever, &stubGenerator{answer: "ok"}, nil)

	rr := postQuery(t, s, `{"query":"multibyte description"}`)
	var resp QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	snippet := resp.Hits[0].Snippet
	if !utf8.ValidString(snippet) {
		t.Fatalf("snippet is not valid UTF-8: %q", snippet)
	}
	want := strings.Repeat("é", 240) + "..."
	if snippet != want {
		t.Errorf("snippet truncated to %d chars, want 240 with ellipsis",
			utf8.RuneCountInString(snippet))
	}
}

func TestQueryJobs_Validation(t *testing.T) {
	s := newTestServer(&stubRetriever{}, &stubGenerator{answer: "ok"}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"query too short", `{"query":"go"}`},
		{"whitespace query", `{"query":"   a   "}`},
		{"top_k zero", `{"query":"golang","top_k":0}`},
		{"top_k too large", `{"query":"golang","top_k":21}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postQuery(t, s, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400; body %s", rr.Code, rr.Body.String())
			}
			var errResp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != errCodeBadReq {
				t.Errorf("error code %s", errResp.Code)
			}
		})
	}
}

func TestQueryJobs_TopKBounds(t *testing.T) {
	s := newTestServer(&stubRetriever{}, &stubGenerator{answer: "ok"}, nil)

	for _, body := range []string{
		`{"query":"golang","top_k":1}`,
		`{"query":"golang","top_k":20}`,
	} {
		rr := postQuery(t, s, body)
		if rr.Code != http.StatusOK {
			t.Errorf("body %s: got %d, want 200", body, rr.Code)
		}
	}
}

func TestQueryJobs_LLMFailureStillSucceeds(t *testing.T) {
	retriever := &stubRetriever{chunks: []domain.RetrievedChunk{longChunk("1-0", 50)}}
	s := newTestServer(retriever, &stubGenerator{}, nil) // generator always errors

	rr := postQuery(t, s, `{"query":"golang jobs"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("LLM failure must not surface as HTTP error, got %d", rr.Code)
	}
	var resp QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Answer, "LLM not configured") {
		t.Errorf("expected fallback answer, got %q", resp.Answer)
	}
	if len(resp.Hits) != 1 {
		t.Error("hits must survive LLM failure")
	}
}

func TestQueryJobs_RetrievalFailure500(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("redis down")}
	s := newTestServer(retriever, &stubGenerator{answer: "ok"}, nil)

	rr := postQuery(t, s, `{"query":"golang jobs"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(&stubRetriever{}, &stubGenerator{answer: "ok"}, &stubPinger{})

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	s.HealthCheck(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("healthy: got %d, want 200", rr.Code)
	}

	s = newTestServer(&stubRetriever{}, &stubGenerator{answer: "ok"}, &stubPinger{err: errors.New("refused")})
	rr = httptest.NewRecorder()
	s.HealthCheck(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded: got %d, want 503", rr.Code)
	}
}
