package chat

// EventType identifies a streaming chat event.
type EventType string

const (
	EventStart EventType = "start"
	EventChunk EventType = "chunk"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is a single server-push item in a streaming chat response.
// Chunks are forwarded in the exact order the provider produced them.
type Event struct {
	Type         EventType  `json:"type"`
	Content      string     `json:"content,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	Sources      []Citation `json:"sources,omitempty"`
	ResponseTime float64    `json:"response_time,omitempty"`
	TokensUsed   int        `json:"tokens_used,omitempty"`
	Error        string     `json:"error,omitempty"`
}
