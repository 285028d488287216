// Package tokens provides token counting for prompt budgeting. The same
// Counter instance must be used for every budget decision in a deployment
// so that context-window packing stays consistent.
package tokens

import (
	"strings"
	"unicode/utf8"
)

// MessageOverhead is the per-message token cost of the chat format framing
// (role markers and separators) on OpenAI-style APIs.
const MessageOverhead = 4

// Counter estimates the number of tokens a text will consume.
type Counter interface {
	Count(text string) int
}

// Estimator is a model-agnostic heuristic counter. It blends the byte-length
// and word-count estimates, which tracks BPE tokenizers closely enough for
// budget decisions on English prose.
type Estimator struct{}

// NewEstimator returns the default heuristic counter.
func NewEstimator() Estimator { return Estimator{} }

func (Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	byBytes := utf8.RuneCountInString(text) / 4
	byWords := len(strings.Fields(text)) * 4 / 3
	if byWords > byBytes {
		return byWords
	}
	if byBytes == 0 {
		return 1
	}
	return byBytes
}
