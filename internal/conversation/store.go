package conversation

import (
	"sync"

	"github.com/kzidane/askbook/internal/llm"
	"github.com/kzidane/askbook/internal/tokens"
)

// Store manages per-session conversation contexts.
type Store interface {
	// GetOrCreate returns the context for the session, creating it with
	// a seeded system message on first use.
	GetOrCreate(sessionID string) *Context
	// Get returns the context for the session if it exists.
	Get(sessionID string) (*Context, bool)
	// Clear removes the session's context.
	Clear(sessionID string)
}

// MemoryStore is an in-memory Store backed by a session map.
type MemoryStore struct {
	systemPrompt string
	counter      tokens.Counter
	maxMessages  int

	mu       sync.RWMutex
	sessions map[string]*Context
}

// NewMemoryStore creates a store that seeds each new session with the
// given system prompt.
func NewMemoryStore(systemPrompt string, counter tokens.Counter, maxMessages int) *MemoryStore {
	return &MemoryStore{
		systemPrompt: systemPrompt,
		counter:      counter,
		maxMessages:  maxMessages,
		sessions:     make(map[string]*Context),
	}
}

func (s *MemoryStore) GetOrCreate(sessionID string) *Context {
	s.mu.RLock()
	ctx, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return ctx
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok := s.sessions[sessionID]; ok {
		return ctx
	}

	ctx = NewContext(sessionID, s.maxMessages)
	ctx.Append(NewMessage(llm.RoleSystem, s.systemPrompt, s.counter.Count(s.systemPrompt)))
	s.sessions[sessionID] = ctx
	return ctx
}

func (s *MemoryStore) Get(sessionID string) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.sessions[sessionID]
	return ctx, ok
}

func (s *MemoryStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
