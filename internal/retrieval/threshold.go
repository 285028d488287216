package retrieval

import "strings"

// Short or generic queries produce low cosine scores against long technical
// passages; a fixed threshold either under-retrieves for vague questions or
// admits noise for precise ones. The engine lowers the cutoff when the query
// looks generic.

// genericWords are stop-phrase words whose dominance marks a query as vague.
var genericWords = map[string]bool{
	"tell":     true,
	"me":       true,
	"about":    true,
	"what":     true,
	"is":       true,
	"are":      true,
	"show":     true,
	"the":      true,
	"a":        true,
	"an":       true,
	"this":     true,
	"explain":  true,
	"describe": true,
	"give":     true,
	"overview": true,
	"book":     true,
}

// genericPatterns are leading phrases that mark a generic-intent query.
var genericPatterns = []string{
	"tell me about",
	"what is",
	"what are",
	"show me",
	"explain",
	"describe",
	"give me an overview",
	"summarize",
}

const (
	// genericWordRatio is the generic-word fraction above which a query is
	// treated as vague.
	genericWordRatio = 0.6

	// shortQueryLength is the trimmed length (runes) under which a query is
	// treated as vague regardless of wording.
	shortQueryLength = 20
)

// adaptiveThreshold selects the similarity cutoff for the query: the base
// threshold for specific queries, lowered to the minimum for short or
// generic ones.
func (e *Engine) adaptiveThreshold(trimmed string) float64 {
	if isGenericQuery(trimmed) {
		return e.cfg.MinThreshold
	}
	return e.cfg.BaseThreshold
}

func isGenericQuery(trimmed string) bool {
	if len([]rune(trimmed)) < shortQueryLength {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, p := range genericPatterns {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}

	words := strings.Fields(lower)
	if len(words) == 0 {
		return true
	}
	generic := 0
	for _, w := range words {
		if genericWords[strings.Trim(w, ".,!?")] {
			generic++
		}
	}
	return float64(generic)/float64(len(words)) > genericWordRatio
}
