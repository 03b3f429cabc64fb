package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answer generation and evaluation are disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Corpus Errors.

	// ErrCorpusFormat indicates the corpus file is missing required columns
	// or cannot be parsed at all.
	ErrCorpusFormat = errors.New("corpus format error")

	// Index Errors.

	// ErrIndexNotInitialized indicates a query against an index that was
	// never built or loaded, or that holds no entries.
	ErrIndexNotInitialized = errors.New("index not initialized")

	// ErrIndexCorrupt indicates persisted index data is unreadable or
	// inconsistent with the configured embedding dimensionality.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrIndexNotFound indicates no persisted index exists at the location.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexAlreadyBuilt indicates a build was requested on an initialised
	// index without asking for replacement.
	ErrIndexAlreadyBuilt = errors.New("index already built")

	// Retrieval Errors.

	// ErrUnknownLanguage indicates no partition is registered for a language tag.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrEmbeddingService indicates the embedding provider failed or is unreachable.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrRetrievalTimeout indicates the embedding call exceeded its deadline.
	ErrRetrievalTimeout = errors.New("retrieval timeout")

	// Connector Errors.

	// ErrRateLimited indicates the upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
