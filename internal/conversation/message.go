package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kzidane/askbook/internal/llm"
)

// Message is a single entry in a session's history.
type Message struct {
	ID          string
	Role        llm.Role
	Content     string
	TokenCount  int
	CitationIDs []string
	CreatedAt   time.Time
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(role llm.Role, content string, tokenCount int) Message {
	return Message{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		TokenCount: tokenCount,
		CreatedAt:  time.Now(),
	}
}

// Context holds the ordered message history for one session.
// All methods are safe for concurrent use; appends within a session
// are serialized so message order is never interleaved.
type Context struct {
	SessionID string

	mu          sync.Mutex
	messages    []Message
	maxMessages int
}

// NewContext creates an empty context for the given session.
// maxMessages caps the retained history; zero means unlimited.
func NewContext(sessionID string, maxMessages int) *Context {
	return &Context{
		SessionID:   sessionID,
		maxMessages: maxMessages,
	}
}

// Append adds a message to the history. When the cap is exceeded the
// oldest non-system message is evicted; a system message at index 0
// is never evicted.
func (c *Context) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	if c.maxMessages <= 0 || len(c.messages) <= c.maxMessages {
		return
	}

	evict := 0
	if c.messages[0].Role == llm.RoleSystem {
		evict = 1
	}
	for len(c.messages) > c.maxMessages && evict < len(c.messages) {
		c.messages = append(c.messages[:evict], c.messages[evict+1:]...)
	}
}

// Messages returns a snapshot copy of the history.
func (c *Context) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of retained messages.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
