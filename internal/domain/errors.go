package domain

import "errors"

var (
	// ErrLLMNotConfigured signals a missing LLM API key; caught per call,
	// never fatal at construction.
	ErrLLMNotConfigured = errors.New("llm not configured")
	// ErrLLMProviderError signals a chat completion provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexNotFound signals that the vector index does not exist and
	// cannot be created (no dimension available).
	ErrIndexNotFound = errors.New("vector index not found")
	// ErrRerankProviderError signals a cross-encoder endpoint failure.
	ErrRerankProviderError = errors.New("rerank provider error")
)
