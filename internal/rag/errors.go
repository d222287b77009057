// Package rag holds the error taxonomy shared by the chunking, embedding,
// storage and retrieval layers. Callers classify failures with errors.Is.
package rag

import "errors"

var (
	// ErrInvalidConfiguration means bad chunking or store parameters.
	// Caller error, never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument means bad query parameters (e.g. k <= 0).
	// Caller error, never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingUnavailable means the embedding service could not be
	// reached or returned no usable vector. Retryable with backoff.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable means a datastore transport failure.
	// Retryable with backoff.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrSchemaMismatch means the vector dimensionality differs from the
	// corpus. Fatal: indicates encoder/corpus version drift and requires
	// operator intervention, never retried.
	ErrSchemaMismatch = errors.New("vector dimensionality mismatch")
)
