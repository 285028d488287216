package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Stream sends a completion request and returns a stream of chunks.
	// The stream's Recv returns io.EOF after the final chunk.
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
	// Name returns the name of this provider.
	Name() string
}

// Stream delivers completion chunks as the provider produces them.
// Callers must Close the stream when done.
type Stream interface {
	Recv() (StreamChunk, error)
	Close() error
}
