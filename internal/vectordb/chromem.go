package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kzidane/askbook/internal/embeddings"
)

const collectionName = "corpus"

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore. The embedder is used
// for passages added without a precomputed embedding.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := toChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

// toChromemFunc converts an Embedder into a chromem.EmbeddingFunc.
// chromem-go expects a function that embeds a single text at a time.
func toChromemFunc(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		results, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[0], nil
	}
}

func (s *ChromemStore) AddPassages(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   p.Content,
			Embedding: p.Embedding,
			Metadata:  metaToMap(p.Meta),
		}
	}

	return s.collection.AddDocuments(ctx, docs, 1)
}

func (s *ChromemStore) SearchVector(ctx context.Context, vector []float32, limit int, scoreFloor float64, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, limit, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	// chromem has no score floor parameter; apply it here.
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if score < scoreFloor {
			continue
		}
		out = append(out, SearchResult{
			Passage: Passage{
				ID:        r.ID,
				Content:   r.Content,
				Embedding: r.Embedding,
				Meta:      mapToMeta(r.Metadata),
			},
			Similarity: score,
		})
	}

	return out, nil
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/corpus.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(dir+"/corpus.gob.gz", "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// metaToMap converts PassageMeta to a flat map[string]string for chromem.
func metaToMap(m PassageMeta) map[string]string {
	md := map[string]string{
		"chapter":      m.Chapter,
		"section":      m.Section,
		"file_path":    m.FilePath,
		"content_hash": m.ContentHash,
		"is_template":  strconv.FormatBool(m.IsTemplate),
	}
	if len(m.Duplicates) > 0 {
		if data, err := json.Marshal(m.Duplicates); err == nil {
			md["duplicates"] = string(data)
		}
	}
	for k, v := range m.Extra {
		md["x_"+k] = v
	}
	return md
}

// mapToMeta converts a flat map[string]string back to PassageMeta.
func mapToMeta(m map[string]string) PassageMeta {
	isTemplate, _ := strconv.ParseBool(m["is_template"])

	meta := PassageMeta{
		Chapter:     m["chapter"],
		Section:     m["section"],
		FilePath:    m["file_path"],
		ContentHash: m["content_hash"],
		IsTemplate:  isTemplate,
	}

	if dup := m["duplicates"]; dup != "" {
		_ = json.Unmarshal([]byte(dup), &meta.Duplicates)
	}

	for k, v := range m {
		if len(k) > 2 && k[:2] == "x_" {
			if meta.Extra == nil {
				meta.Extra = make(map[string]string)
			}
			meta.Extra[k[2:]] = v
		}
	}

	return meta
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.Chapter != nil {
		where["chapter"] = *filter.Chapter
	}
	if filter.Section != nil {
		where["section"] = *filter.Section
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
