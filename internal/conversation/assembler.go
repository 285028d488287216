package conversation

import (
	"strings"

	"github.com/kzidane/askbook/internal/llm"
	"github.com/kzidane/askbook/internal/tokens"
)

const (
	// passageBudgetRatio caps the passage block at this share of the
	// budget remaining after the system message, reserving room for
	// conversation history.
	passageBudgetRatio = 0.6
	// historyBudgetRatio caps cumulative tokens for the assembled
	// message set, leaving headroom for the generated answer.
	historyBudgetRatio = 0.9
)

const passageHeader = "Relevant passages from the book:\n\n"

// Assembler packs a conversation and retrieved passages into a token
// budget for a generation call.
type Assembler struct {
	counter tokens.Counter
}

// NewAssembler creates an assembler using the given token counter.
// The same counter must be used for message token counts elsewhere so
// budget math stays consistent.
func NewAssembler(counter tokens.Counter) *Assembler {
	return &Assembler{counter: counter}
}

// BuildMessages assembles the outgoing message list, highest priority
// first: the system message is always included, the passage block only
// if it fits its reserved share, then as much trailing history as the
// budget allows. History is admitted newest first but emitted in
// chronological order, and messages are dropped whole, never truncated.
func (a *Assembler) BuildMessages(history []Message, passages []string, maxTokens int) []llm.Message {
	var out []llm.Message

	cumulative := 0
	rest := history
	if len(history) > 0 && history[0].Role == llm.RoleSystem {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: history[0].Content})
		cumulative += a.cost(history[0].Content)
		rest = history[1:]
	}

	if len(passages) > 0 {
		block := passageHeader + strings.Join(passages, "\n\n")
		blockCost := a.cost(block)
		remaining := maxTokens - cumulative
		if float64(blockCost) < passageBudgetRatio*float64(remaining) {
			out = append(out, llm.Message{Role: llm.RoleSystem, Content: block})
			cumulative += blockCost
		}
	}

	limit := int(historyBudgetRatio * float64(maxTokens))
	admitted := 0
	for i := len(rest) - 1; i >= 0; i-- {
		msgCost := rest[i].TokenCount + tokens.MessageOverhead
		if rest[i].TokenCount == 0 {
			msgCost = a.cost(rest[i].Content)
		}
		if cumulative+msgCost > limit {
			break
		}
		cumulative += msgCost
		admitted++
	}

	for _, msg := range rest[len(rest)-admitted:] {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func (a *Assembler) cost(content string) int {
	return a.counter.Count(content) + tokens.MessageOverhead
}
