package retrieval

import (
	"strings"

	"github.com/kzidane/askbook/internal/vectordb"
)

// fingerprint returns the content identity key for a passage: the indexed
// content hash when present, otherwise normalized content.
func fingerprint(p vectordb.Passage) string {
	if p.Meta.ContentHash != "" {
		return p.Meta.ContentHash
	}
	return strings.ToLower(strings.TrimSpace(p.Content))
}

// deduplicate collapses candidates sharing a fingerprint down to the
// highest-scoring representative. Suppressed occurrences are recorded on the
// keeper's metadata under Duplicates so their provenance is not lost.
// Idempotent: a second pass over the output removes nothing further.
func deduplicate(candidates []Result) []Result {
	keepers := make(map[string]int, len(candidates))
	out := make([]Result, 0, len(candidates))

	for _, c := range candidates {
		fp := fingerprint(c.Chunk)
		idx, seen := keepers[fp]
		if !seen {
			keepers[fp] = len(out)
			out = append(out, c)
			continue
		}

		keeper := &out[idx]
		if c.Score > keeper.Score {
			// The newcomer wins; demote the previous keeper to a
			// duplicate reference and inherit its recorded duplicates.
			c.Chunk.Meta.Duplicates = append(keeper.Chunk.Meta.Duplicates, vectordb.DuplicateRef{
				FilePath: keeper.Chunk.Meta.FilePath,
				Score:    keeper.Score,
			})
			c.IsDuplicate = false
			*keeper = c
		} else {
			keeper.Chunk.Meta.Duplicates = append(keeper.Chunk.Meta.Duplicates, vectordb.DuplicateRef{
				FilePath: c.Chunk.Meta.FilePath,
				Score:    c.Score,
			})
		}
	}

	return out
}
