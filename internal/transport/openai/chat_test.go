package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

type chatCompletionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func TestGenerate_MissingKeyNoNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := NewChatClient(&ChatConfig{
		APIKey:  "",
		BaseURL: server.URL,
		Model:   "test-model",
	})

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrLLMNotConfigured) {
		t.Fatalf("expected ErrLLMNotConfigured, got %v", err)
	}
	if called {
		t.Error("missing key must be detected before any network call")
	}
}

func TestGenerate_Success(t *testing.T) {
	var gotReq chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "  SUMMARY: two matches.  "}}]
		}`))
	}))
	defer server.Close()

	c := NewChatClient(&ChatConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Model:       "test-model",
		Temperature: 0.2,
		MaxTokens:   500,
	})

	answer, err := c.Generate(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "SUMMARY: two matches." {
		t.Errorf("answer must be trimmed, got %q", answer)
	}

	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != systemMessage {
		t.Errorf("system message wrong: %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[1].Role != "user" || gotReq.Messages[1].Content != "the prompt" {
		t.Errorf("user message wrong: %+v", gotReq.Messages[1])
	}
	if gotReq.MaxTokens != 500 {
		t.Errorf("max_tokens = %d", gotReq.MaxTokens)
	}
}

func TestGenerate_ProviderErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	c := NewChatClient(&ChatConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	})

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected ErrLLMProviderError, got %v", err)
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	c := NewChatClient(&ChatConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	})

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected ErrLLMProviderError for empty choices, got %v", err)
	}
}
