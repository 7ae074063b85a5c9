package service

import "errors"

// Error classes surfaced by the RAG core. Callers discriminate with
// errors.Is; every wrap keeps the stage in the message ("embed query",
// "vector search", "generate answer") so a handler can tell which part of
// the pipeline failed.
var (
	// ErrInvalidInput marks a request rejected before any external call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited marks a transient provider failure (HTTP 429 or 5xx).
	// Only the embedding client retries on it.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable marks a transport-level failure before any HTTP status
	// exists (DNS, refused connection). Retried like ErrRateLimited but kept
	// distinct so callers can tell an outage from throttling.
	ErrUnavailable = errors.New("provider unreachable")

	// ErrAuthFailed marks a rejected API key. Never retried.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrDimensionMismatch marks an embedding response whose vector length
	// does not match the configured model dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMalformedResponse marks a provider response that could not be
	// decoded or is missing required fields.
	ErrMalformedResponse = errors.New("malformed API response")
)
