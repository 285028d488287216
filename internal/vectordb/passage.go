package vectordb

// Passage represents one indexed chunk of corpus content.
type Passage struct {
	ID        string
	Content   string
	Embedding []float32
	Meta      PassageMeta
}

// PassageMeta holds structured information about a passage. Known fields are
// typed; Extra carries forward-compatible free-form values.
type PassageMeta struct {
	Chapter     string
	Section     string
	FilePath    string
	ContentHash string
	IsTemplate  bool
	Duplicates  []DuplicateRef
	Extra       map[string]string
}

// DuplicateRef records the provenance of a suppressed duplicate so the
// information survives deduplication.
type DuplicateRef struct {
	FilePath string  `json:"file_path"`
	Score    float64 `json:"score"`
}

// SearchResult pairs a passage with its similarity score against the query
// vector. The passage embedding is populated so callers can re-rank without
// another round trip.
type SearchResult struct {
	Passage    Passage
	Similarity float64
}

// SearchFilter narrows search results by metadata fields.
type SearchFilter struct {
	Chapter *string
	Section *string
}
