package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kzidane/askbook/internal/conversation"
	"github.com/kzidane/askbook/internal/llm"
	"github.com/kzidane/askbook/internal/retrieval"
	"github.com/kzidane/askbook/internal/tokens"
)

// ErrNoContent indicates no relevant passages survived retrieval even
// after the relaxed fallback pass. Callers should surface guidance to
// rephrase rather than a generic failure.
var ErrNoContent = errors.New("no relevant content found")

// ErrGeneration indicates the generation provider failed. The upstream
// error is wrapped so boundaries can map it without leaking its body.
var ErrGeneration = errors.New("generation failed")

// DefaultSystemPrompt seeds new sessions. It fixes the assistant's scope
// to the indexed book and the citation format used in passage labels.
const DefaultSystemPrompt = "You are an assistant that answers questions about the indexed book. " +
	"Ground every answer in the provided passages and cite them using their " +
	"[Chapter - Section] labels. If the passages do not cover the question, say so."

// shortQueryLimit is the rune length under which an empty first
// retrieval pass earns one retry without diversification.
const shortQueryLimit = 20

// TranscriptSink receives messages as they are committed to a session.
// Recording is best effort; failures are logged, never surfaced.
type TranscriptSink interface {
	Record(ctx context.Context, sessionID string, msg conversation.Message) error
}

// Request is one chat invocation. Zero values select configured defaults.
type Request struct {
	Query         string
	SessionID     string
	K             int
	ContextWindow int
}

// Answer is the complete response to a non-streaming chat call.
type Answer struct {
	Answer       string     `json:"answer"`
	Sources      []Citation `json:"sources"`
	SessionID    string     `json:"session_id"`
	ResponseTime float64    `json:"response_time"`
	TokensUsed   int        `json:"tokens_used"`
	Model        string     `json:"model"`
}

// Settings holds orchestrator-level defaults.
type Settings struct {
	Model         string
	DefaultK      int
	ContextWindow int
	Temperature   float64
	MMRLambda     float64
}

// Orchestrator ties retrieval, context assembly and generation into the
// chat entry points. Safe for concurrent use; per-session appends are
// serialized by the conversation store.
type Orchestrator struct {
	engine     *retrieval.Engine
	provider   llm.Provider
	store      conversation.Store
	assembler  *conversation.Assembler
	counter    tokens.Counter
	transcript TranscriptSink
	settings   Settings
}

// NewOrchestrator creates a chat orchestrator. transcript may be nil.
func NewOrchestrator(
	engine *retrieval.Engine,
	provider llm.Provider,
	store conversation.Store,
	counter tokens.Counter,
	transcript TranscriptSink,
	settings Settings,
) *Orchestrator {
	if settings.DefaultK <= 0 {
		settings.DefaultK = 5
	}
	if settings.ContextWindow <= 0 {
		settings.ContextWindow = 4096
	}
	return &Orchestrator{
		engine:     engine,
		provider:   provider,
		store:      store,
		assembler:  conversation.NewAssembler(counter),
		counter:    counter,
		transcript: transcript,
		settings:   settings,
	}
}

// prepared carries the shared state both chat modes build before the
// generation call.
type prepared struct {
	sessionID string
	convCtx   *conversation.Context
	citations []Citation
	messages  []llm.Message
}

// prepare runs the shared protocol: validate, resolve the session,
// commit the user message, retrieve with the fallback pass, build
// citations and assemble the outgoing messages.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (*prepared, error) {
	query := strings.TrimSpace(req.Query)
	if len([]rune(query)) < retrieval.MinQueryLength {
		return nil, fmt.Errorf("%w: %q", retrieval.ErrInvalidQuery, query)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	k := req.K
	if k <= 0 {
		k = o.settings.DefaultK
	}
	window := req.ContextWindow
	if window <= 0 {
		window = o.settings.ContextWindow
	}

	convCtx := o.store.GetOrCreate(sessionID)
	userMsg := conversation.NewMessage(llm.RoleUser, query, o.counter.Count(query))
	convCtx.Append(userMsg)
	o.record(ctx, sessionID, userMsg)

	results, err := o.retrieveWithFallback(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w for query %q", ErrNoContent, query)
	}

	citations, passages := buildCitations(results)
	messages := o.assembler.BuildMessages(convCtx.Messages(), passages, window)

	return &prepared{
		sessionID: sessionID,
		convCtx:   convCtx,
		citations: citations,
		messages:  messages,
	}, nil
}

// retrieveWithFallback over-fetches with diversification, truncates to
// k, and for short queries retries once without MMR when the first pass
// comes back empty. The retry is a different ranking strategy, not a
// transport retry; transport errors propagate immediately.
func (o *Orchestrator) retrieveWithFallback(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	results, err := o.engine.Retrieve(ctx, query, retrieval.Options{K: k * 3, MMRLambda: o.settings.MMRLambda})
	if err != nil {
		return nil, err
	}
	if len(results) > k {
		results = results[:k]
	}
	if len(results) > 0 {
		return results, nil
	}

	if len([]rune(query)) >= shortQueryLimit {
		return nil, nil
	}
	return o.engine.Retrieve(ctx, query, retrieval.Options{K: k, DisableMMR: true})
}

// Chat answers a query in one request/response round trip.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Answer, error) {
	start := time.Now()

	prep, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Model:       o.settings.Model,
		Messages:    prep.messages,
		Temperature: o.settings.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	o.commitAssistant(ctx, prep, resp.Content)

	return &Answer{
		Answer:       resp.Content,
		Sources:      prep.citations,
		SessionID:    prep.sessionID,
		ResponseTime: time.Since(start).Seconds(),
		TokensUsed:   resp.InputTokens + resp.OutputTokens,
		Model:        resp.Model,
	}, nil
}

// StreamChat answers a query as an ordered event sequence. Validation
// and retrieval run synchronously so pre-stream failures return as
// errors; once the channel is open, failures arrive as a terminal error
// event and the channel is always closed. The assistant message is
// committed only after the stream completes cleanly.
func (o *Orchestrator) StreamChat(ctx context.Context, req Request) (<-chan Event, error) {
	start := time.Now()

	prep, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	stream, err := o.provider.Stream(ctx, llm.CompletionRequest{
		Model:       o.settings.Model,
		Messages:    prep.messages,
		Temperature: o.settings.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer stream.Close()

		if !o.emit(ctx, events, Event{Type: EventStart, SessionID: prep.sessionID, Sources: prep.citations}) {
			return
		}

		var answer strings.Builder
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				o.emit(ctx, events, Event{Type: EventError, SessionID: prep.sessionID, Error: "generation failed"})
				return
			}
			if chunk.Content == "" {
				continue
			}
			if !o.emit(ctx, events, Event{Type: EventChunk, Content: chunk.Content}) {
				return
			}
			answer.WriteString(chunk.Content)
		}

		o.commitAssistant(ctx, prep, answer.String())
		o.emit(ctx, events, Event{
			Type:         EventDone,
			SessionID:    prep.sessionID,
			ResponseTime: time.Since(start).Seconds(),
			TokensUsed:   o.counter.Count(answer.String()),
		})
	}()
	return events, nil
}

// emit delivers an event unless the caller has gone away. A false
// return means the stream is abandoned and nothing more should be
// committed.
func (o *Orchestrator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) commitAssistant(ctx context.Context, prep *prepared, answer string) {
	msg := conversation.NewMessage(llm.RoleAssistant, answer, o.counter.Count(answer))
	for _, c := range prep.citations {
		msg.CitationIDs = append(msg.CitationIDs, c.ID)
	}
	prep.convCtx.Append(msg)
	o.record(ctx, prep.sessionID, msg)
}

func (o *Orchestrator) record(ctx context.Context, sessionID string, msg conversation.Message) {
	if o.transcript == nil {
		return
	}
	if err := o.transcript.Record(ctx, sessionID, msg); err != nil {
		log.Printf("transcript: failed to record message for session %s: %v", sessionID, err)
	}
}
