package retrieval

import (
	"math"
	"strings"
)

// maximalMarginalRelevance greedily selects up to k candidates balancing
// relevance to the query against similarity to already-selected items:
// score = lambda*relevance - (1-lambda)*maxSimilarityToSelected. The
// candidate's stored search score serves as relevance (it is the cosine
// similarity to the query vector); pairwise similarity uses the passage
// embeddings returned by the store. When an embedding is missing, lexical
// Jaccard overlap stands in so diversity still reflects content.
func maximalMarginalRelevance(queryVec []float32, candidates []Result, k int, lambda float64) []Result {
	if len(candidates) <= 1 || k <= 0 {
		return candidates
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	remaining := make([]Result, len(candidates))
	copy(remaining, candidates)
	selected := make([]Result, 0, k)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if sim := chunkSimilarity(cand, sel); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*cand.Score - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// chunkSimilarity measures how alike two candidates are, preferring cosine
// similarity over their embeddings.
func chunkSimilarity(a, b Result) float64 {
	if len(a.Chunk.Embedding) > 0 && len(a.Chunk.Embedding) == len(b.Chunk.Embedding) {
		return cosineSimilarity(a.Chunk.Embedding, b.Chunk.Embedding)
	}
	return jaccardSimilarity(a.Chunk.Content, b.Chunk.Content)
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for zero-length or mismatched vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// jaccardSimilarity computes token-set overlap between two texts.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(w, ".,!?;:")] = true
	}
	return set
}
