// Package retrieval implements the semantic retrieval engine: adaptive
// relevance thresholding, content deduplication, and Maximal Marginal
// Relevance re-ranking over a vector search collaborator.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kzidane/askbook/internal/embeddings"
	"github.com/kzidane/askbook/internal/vectordb"
)

var (
	// ErrInvalidQuery indicates the query is empty or too short to retrieve
	// against. User-correctable.
	ErrInvalidQuery = errors.New("query is empty or too short")

	// ErrNoEmbedder indicates the engine was constructed without an
	// embedding client.
	ErrNoEmbedder = errors.New("no embedder configured")
)

// MinQueryLength is the minimum trimmed query length (in runes) accepted by
// Retrieve. Shorter queries fail with ErrInvalidQuery; queries between this
// and the generic-query boundary get the lowered adaptive threshold instead.
const MinQueryLength = 3

const (
	// candidateFloor is the score floor passed to the vector store. Kept
	// near zero so thresholding happens in the engine, not the index.
	candidateFloor = 0.1

	// maxCandidates caps the over-fetch size.
	maxCandidates = 100

	// mmrMinSurvivors is the survivor count above which MMR re-ranking is
	// worth running.
	mmrMinSurvivors = 3
)

// Config holds engine-level tunables.
type Config struct {
	DefaultK      int
	BaseThreshold float64
	MinThreshold  float64
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		DefaultK:      5,
		BaseThreshold: 0.7,
		MinThreshold:  0.35,
	}
}

// Result is one ranked retrieval hit.
type Result struct {
	Chunk       vectordb.Passage
	Score       float64
	Rank        int
	IsDuplicate bool
}

// Options controls a single Retrieve call. Zero values select defaults.
type Options struct {
	K                int
	Filter           *vectordb.SearchFilter
	IncludeTemplates bool
	DisableMMR       bool
	MMRLambda        float64
}

// Engine ranks corpus passages against natural-language queries.
// Safe for concurrent use: it holds no per-call mutable state.
type Engine struct {
	embedder embeddings.Embedder
	store    vectordb.VectorStore
	cfg      Config
}

// NewEngine creates a retrieval engine over the given collaborators.
func NewEngine(embedder embeddings.Embedder, store vectordb.VectorStore, cfg Config) *Engine {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultConfig().DefaultK
	}
	if cfg.BaseThreshold == 0 {
		cfg.BaseThreshold = DefaultConfig().BaseThreshold
	}
	if cfg.MinThreshold == 0 {
		cfg.MinThreshold = DefaultConfig().MinThreshold
	}
	return &Engine{embedder: embedder, store: store, cfg: cfg}
}

// Retrieve returns up to k passages relevant to the query, ranked by score
// descending with 1-based contiguous ranks. Transport failures from the
// embedder or the vector store propagate wrapped, never masked.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) ([]Result, error) {
	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < MinQueryLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, trimmed)
	}
	if e.embedder == nil {
		return nil, ErrNoEmbedder
	}

	k := opts.K
	if k <= 0 {
		k = e.cfg.DefaultK
	}
	lambda := opts.MMRLambda
	if lambda <= 0 || lambda > 1 {
		lambda = 0.5
	}

	threshold := e.adaptiveThreshold(trimmed)

	vecs, err := e.embedder.Embed(ctx, []string{trimmed})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	queryVec := vecs[0]

	// Over-fetch so dedup and thresholding have headroom.
	fetchN := k * 3
	if fetchN > maxCandidates {
		fetchN = maxCandidates
	}

	hits, err := e.store.SearchVector(ctx, queryVec, fetchN, candidateFloor, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	candidates := make([]Result, 0, len(hits))
	for _, h := range hits {
		if !opts.IncludeTemplates && h.Passage.Meta.IsTemplate {
			continue
		}
		candidates = append(candidates, Result{Chunk: h.Passage, Score: h.Similarity})
	}

	candidates = deduplicate(candidates)

	survivors := candidates[:0:0]
	for _, c := range candidates {
		if c.Score >= threshold {
			survivors = append(survivors, c)
		}
	}

	if !opts.DisableMMR && len(survivors) > mmrMinSurvivors {
		survivors = maximalMarginalRelevance(queryVec, survivors, k, lambda)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Score > survivors[j].Score
	})
	if len(survivors) > k {
		survivors = survivors[:k]
	}
	for i := range survivors {
		survivors[i].Rank = i + 1
	}

	return survivors, nil
}

// EffectiveThreshold reports the threshold Retrieve would apply to the query.
// Exposed for diagnostics.
func (e *Engine) EffectiveThreshold(query string) float64 {
	return e.adaptiveThreshold(strings.TrimSpace(query))
}
