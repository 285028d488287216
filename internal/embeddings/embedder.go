package embeddings

import (
	"context"
	"errors"
)

// Sentinel errors for classifying upstream embedding failures.
var (
	// ErrRateLimited indicates the upstream API rejected the request for
	// rate or quota reasons. Retriable with backoff.
	ErrRateLimited = errors.New("embedding provider rate limited")

	// ErrInvalidInput indicates the input cannot be embedded (e.g. empty
	// text). Not retriable.
	ErrInvalidInput = errors.New("invalid embedding input")
)

// Embedder defines the interface for generating text embeddings.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}
