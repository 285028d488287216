package chat

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kzidane/askbook/internal/retrieval"
)

// snippetLimit caps citation snippets so answer payloads stay small.
const snippetLimit = 200

// Citation points back to the retrieved passage that supports an answer.
type Citation struct {
	ID             string  `json:"id"`
	ChunkID        string  `json:"chunk_id"`
	DocumentID     string  `json:"document_id,omitempty"`
	TextSnippet    string  `json:"text_snippet"`
	RelevanceScore float64 `json:"relevance_score"`
	Chapter        string  `json:"chapter,omitempty"`
	Section        string  `json:"section,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// buildCitations derives one citation per retrieved result plus the
// matching labeled passage text handed to the context assembler.
func buildCitations(results []retrieval.Result) ([]Citation, []string) {
	citations := make([]Citation, 0, len(results))
	passages := make([]string, 0, len(results))

	for _, res := range results {
		meta := res.Chunk.Meta
		citations = append(citations, Citation{
			ID:             uuid.NewString(),
			ChunkID:        res.Chunk.ID,
			DocumentID:     meta.FilePath,
			TextSnippet:    snippet(res.Chunk.Content),
			RelevanceScore: res.Score,
			Chapter:        meta.Chapter,
			Section:        meta.Section,
			Confidence:     res.Score,
		})
		passages = append(passages, labelPassage(meta.Chapter, meta.Section, res.Chunk.Content))
	}
	return citations, passages
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLimit {
		return content
	}
	return string(runes[:snippetLimit]) + "..."
}

func labelPassage(chapter, section, content string) string {
	switch {
	case chapter != "" && section != "":
		return fmt.Sprintf("[Chapter: %s - Section: %s]\n%s", chapter, section, content)
	case chapter != "":
		return fmt.Sprintf("[Chapter: %s]\n%s", chapter, content)
	default:
		return content
	}
}
