package answer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

type stubRetriever struct {
	gotQuery  string
	gotHybrid bool
	chunks    []domain.RetrievedChunk
	err       error
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, useHybrid bool) ([]domain.RetrievedChunk, error) {
	s.gotQuery = query
	s.gotHybrid = useHybrid
	return s.chunks, s.err
}

type stubReranker struct {
	called bool
	out    []domain.RetrievedChunk
	err    error
}

func (s *stubReranker) Rerank(_ context.Context, _ string, chunks []domain.RetrievedChunk) ([]domain.RetrievedChunk, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	if s.out != nil {
		return s.out, nil
	}
	return chunks, nil
}

type stubGenerator struct {
	gotPrompt string
	answer    string
	err       error
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.gotPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type memCache struct {
	data map[string][]byte
	gets []string
	sets []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.gets = append(m.gets, key)
	v, ok := m.data[key]
	return v, ok
}

func (m *memCache) Set(_ context.Context, key string, value []byte) {
	m.sets = append(m.sets, key)
	m.data[key] = value
}

func testChunks(ids ...string) []domain.RetrievedChunk {
	out := make([]domain.RetrievedChunk, len(ids))
	for i, id := range ids {
		out[i] = domain.RetrievedChunk{
			ID:       id,
			Text:     "desc-" + id,
			Metadata: domain.Metadata{domain.MetaJobTitle: "role-" + id},
			Score:    1.0 - float64(i)*0.1,
		}
	}
	return out
}

func TestQuery_FullPipeline(t *testing.T) {
	retriever := &stubRetriever{chunks: testChunks("A", "B", "C")}
	generator := &stubGenerator{answer: "SUMMARY: found jobs.\nJOBS:\n- role-A | x | y | z"}
	cache := newMemCache()

	svc := New(retriever, nil, generator, cache)
	res, err := svc.Query(context.Background(), Request{Query: "go jobs", TopK: 2, UseHybrid: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if retriever.gotQuery != "go jobs" || !retriever.gotHybrid {
		t.Errorf("retriever saw query=%q hybrid=%v", retriever.gotQuery, retriever.gotHybrid)
	}
	if len(res.Chunks) != 2 {
		t.Errorf("expected truncation to TopK=2, got %d chunks", len(res.Chunks))
	}
	if res.Answer != generator.answer {
		t.Errorf("answer = %q", res.Answer)
	}
	if !strings.Contains(generator.gotPrompt, "desc-A") {
		t.Error("prompt missing retrieved context")
	}
	if len(cache.sets) != 1 {
		t.Errorf("expected one cache store, got %d", len(cache.sets))
	}
}

func TestQuery_CacheHitShortCircuits(t *testing.T) {
	cached := Result{Answer: "cached answer", Chunks: testChunks("Z")}
	blob, _ := json.Marshal(cached)

	cache := newMemCache()
	key := Fingerprint("repeat question", 3, false, false)
	cache.data[key] = blob

	retriever := &stubRetriever{err: errors.New("must not be called")}
	svc := New(retriever, nil, &stubGenerator{}, cache)

	res, err := svc.Query(context.Background(), Request{Query: "repeat question", TopK: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Answer != "cached answer" || len(res.Chunks) != 1 || res.Chunks[0].ID != "Z" {
		t.Errorf("expected cached result, got %+v", res)
	}
	if retriever.gotQuery != "" {
		t.Error("cache hit must not reach the retriever")
	}
}

func TestQuery_CorruptCacheEntryIgnored(t *testing.T) {
	cache := newMemCache()
	key := Fingerprint("q", 2, false, false)
	cache.data[key] = []byte("{not json")

	retriever := &stubRetriever{chunks: testChunks("A")}
	generator := &stubGenerator{answer: "fresh"}
	svc := New(retriever, nil, generator, cache)

	res, err := svc.Query(context.Background(), Request{Query: "q", TopK: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Answer != "fresh" {
		t.Errorf("expected fresh answer after corrupt cache entry, got %q", res.Answer)
	}
}

func TestQuery_RerankReordersBeforeTruncation(t *testing.T) {
	retriever := &stubRetriever{chunks: testChunks("A", "B", "C")}
	reranker := &stubReranker{out: testChunks("C", "A", "B")}
	svc := New(retriever, reranker, &stubGenerator{answer: "ok"}, nil)

	res, err := svc.Query(context.Background(), Request{Query: "q", TopK: 2, UseRerank: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reranker.called {
		t.Fatal("reranker was not invoked")
	}
	if len(res.Chunks) != 2 || res.Chunks[0].ID != "C" || res.Chunks[1].ID != "A" {
		t.Errorf("expected reranked order [C A], got %+v", res.Chunks)
	}
}

func TestQuery_RerankSkippedWhenNotRequested(t *testing.T) {
	reranker := &stubReranker{}
	svc := New(&stubRetriever{chunks: testChunks("A")}, reranker, &stubGenerator{answer: "ok"}, nil)

	if _, err := svc.Query(context.Background(), Request{Query: "q", TopK: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reranker.called {
		t.Error("reranker must not run when UseRerank is false")
	}
}

func TestQuery_RerankFailureKeepsRetrievalOrder(t *testing.T) {
	retriever := &stubRetriever{chunks: testChunks("A", "B")}
	reranker := &stubReranker{err: errors.New("rerank backend down")}
	svc := New(retriever, reranker, &stubGenerator{answer: "ok"}, nil)

	res, err := svc.Query(context.Background(), Request{Query: "q", TopK: 2, UseRerank: true})
	if err != nil {
		t.Fatalf("rerank failure must not fail the request: %v", err)
	}
	if res.Chunks[0].ID != "A" || res.Chunks[1].ID != "B" {
		t.Errorf("expected retrieval order preserved, got %+v", res.Chunks)
	}
}

func TestQuery_GenerationFailureServesFallback(t *testing.T) {
	retriever := &stubRetriever{chunks: testChunks("A")}
	generator := &stubGenerator{err: domain.ErrLLMNotConfigured}
	svc := New(retriever, nil, generator, nil)

	res, err := svc.Query(context.Background(), Request{Query: "q", TopK: 1})
	if err != nil {
		t.Fatalf("generation failure must not fail the request: %v", err)
	}
	if res.Answer != fallbackAnswer {
		t.Errorf("expected fallback answer, got %q", res.Answer)
	}
	if len(res.Chunks) != 1 {
		t.Error("retrieval results must survive generation failure")
	}
}

func TestQuery_RetrieveErrorFailsRequest(t *testing.T) {
	wantErr := errors.New("vector store unreachable")
	svc := New(&stubRetriever{err: wantErr}, nil, &stubGenerator{}, nil)

	_, err := svc.Query(context.Background(), Request{Query: "q", TopK: 1})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped retrieval error, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("golang", 5, true, false)
	b := Fingerprint("golang", 5, true, false)
	if a != b {
		t.Error("identical parameters must produce identical fingerprints")
	}
	if !strings.HasPrefix(a, "query:") {
		t.Errorf("fingerprint missing namespace prefix: %s", a)
	}
	if len(a) != len("query:")+64 {
		t.Errorf("fingerprint hash should be 64 hex chars, got %s", a)
	}

	variants := []string{
		Fingerprint("golang!", 5, true, false),
		Fingerprint("golang", 6, true, false),
		Fingerprint("golang", 5, false, false),
		Fingerprint("golang", 5, true, true),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d collided with the base fingerprint", i)
		}
	}
}
