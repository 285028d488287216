package vectordb

import "context"

// VectorStore defines the nearest-neighbor search collaborator. The retrieval
// engine treats it as opaque: it supplies a query vector and a low score
// floor, and applies its own thresholding on the results.
type VectorStore interface {
	// AddPassages adds or updates passages in the store. Passages without a
	// precomputed embedding are embedded by the store.
	AddPassages(ctx context.Context, passages []Passage) error

	// SearchVector returns up to limit passages ranked by cosine similarity
	// to the query vector, dropping anything below scoreFloor. An empty
	// result is not an error.
	SearchVector(ctx context.Context, vector []float32, limit int, scoreFloor float64, filter *SearchFilter) ([]SearchResult, error)

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of passages in the store.
	Count() int
}
