package vectordb

import (
	"context"
	"math"
	"testing"
)

// mockEmbedder returns deterministic embeddings based on text content.
// Similar texts produce similar vectors because shared characters contribute
// to the same positions in the vector.
type mockEmbedder struct {
	dims int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = deterministicVector(text, m.dims)
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

func deterministicVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for i, ch := range text {
		idx := (int(ch) + i) % dims
		vec[idx] += 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func testPassages() []Passage {
	return []Passage{
		{
			ID:      "p1",
			Content: "Physical AI systems combine robotics with learned perception models",
			Meta: PassageMeta{
				Chapter:     "1",
				Section:     "Introduction",
				FilePath:    "book/ch01.md",
				ContentHash: "h1",
			},
		},
		{
			ID:      "p2",
			Content: "Sensor fusion merges camera, lidar, and inertial measurements",
			Meta: PassageMeta{
				Chapter:     "2",
				Section:     "Perception",
				FilePath:    "book/ch02.md",
				ContentHash: "h2",
			},
		},
		{
			ID:      "p3",
			Content: "Chapter template placeholder text",
			Meta: PassageMeta{
				Chapter:     "9",
				Section:     "Template",
				FilePath:    "book/template.md",
				ContentHash: "h3",
				IsTemplate:  true,
			},
		},
	}
}

func TestChromemStore_AddAndSearchVector(t *testing.T) {
	ctx := context.Background()
	embedder := &mockEmbedder{dims: 64}

	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	if err := store.AddPassages(ctx, testPassages()); err != nil {
		t.Fatalf("AddPassages: %v", err)
	}
	if count := store.Count(); count != 3 {
		t.Errorf("Count: got %d, want 3", count)
	}

	queryVec := deterministicVector("robotics and physical AI perception", 64)
	results, err := store.SearchVector(ctx, queryVec, 3, 0.0, nil)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("SearchVector returned no results")
	}

	// Results are ordered by similarity descending.
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results out of order at %d: %f > %f", i, results[i].Similarity, results[i-1].Similarity)
		}
	}

	// Embeddings are returned for re-ranking.
	if len(results[0].Passage.Embedding) != 64 {
		t.Errorf("embedding dims: got %d, want 64", len(results[0].Passage.Embedding))
	}
}

func TestChromemStore_ScoreFloor(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemStore(&mockEmbedder{dims: 64})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := store.AddPassages(ctx, testPassages()); err != nil {
		t.Fatalf("AddPassages: %v", err)
	}

	queryVec := deterministicVector("sensor fusion lidar", 64)
	results, err := store.SearchVector(ctx, queryVec, 3, 0.99, nil)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	for _, r := range results {
		if r.Similarity < 0.99 {
			t.Errorf("result below floor: %f", r.Similarity)
		}
	}
}

func TestChromemStore_EmptyStore(t *testing.T) {
	store, err := NewChromemStore(&mockEmbedder{dims: 8})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	results, err := store.SearchVector(context.Background(), deterministicVector("q", 8), 5, 0.1, nil)
	if err != nil {
		t.Fatalf("SearchVector on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty store, want 0", len(results))
	}
}

func TestChromemStore_FilterByChapter(t *testing.T) {
	ctx := context.Background()
	store, err := NewChromemStore(&mockEmbedder{dims: 64})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := store.AddPassages(ctx, testPassages()); err != nil {
		t.Fatalf("AddPassages: %v", err)
	}

	chapter := "2"
	queryVec := deterministicVector("anything", 64)
	results, err := store.SearchVector(ctx, queryVec, 3, 0.0, &SearchFilter{Chapter: &chapter})
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	for _, r := range results {
		if r.Passage.Meta.Chapter != "2" {
			t.Errorf("filter leak: got chapter %q", r.Passage.Meta.Chapter)
		}
	}
}

func TestChromemStore_PersistLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewChromemStore(&mockEmbedder{dims: 32})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := store.AddPassages(ctx, testPassages()); err != nil {
		t.Fatalf("AddPassages: %v", err)
	}
	if err := store.Persist(ctx, dir); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reloaded, err := NewChromemStore(&mockEmbedder{dims: 32})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := reloaded.Load(ctx, dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if count := reloaded.Count(); count != 3 {
		t.Errorf("Count after reload: got %d, want 3", count)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	meta := PassageMeta{
		Chapter:     "3",
		Section:     "Control",
		FilePath:    "book/ch03.md",
		ContentHash: "abc",
		IsTemplate:  true,
		Duplicates:  []DuplicateRef{{FilePath: "book/copy.md", Score: 0.78}},
		Extra:       map[string]string{"language": "en"},
	}

	got := mapToMeta(metaToMap(meta))

	if got.Chapter != meta.Chapter || got.Section != meta.Section {
		t.Errorf("chapter/section: got %q/%q", got.Chapter, got.Section)
	}
	if !got.IsTemplate {
		t.Error("IsTemplate lost in round trip")
	}
	if len(got.Duplicates) != 1 || got.Duplicates[0].Score != 0.78 {
		t.Errorf("Duplicates: got %+v", got.Duplicates)
	}
	if got.Extra["language"] != "en" {
		t.Errorf("Extra: got %+v", got.Extra)
	}
}
