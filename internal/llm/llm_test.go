package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Chunks   []string
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
		Chunks: []string{"mock ", "response"},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) Stream(ctx context.Context, req CompletionRequest) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return &mockStream{chunks: m.Chunks}, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

type mockStream struct {
	chunks []string
	pos    int
}

func (s *mockStream) Recv() (StreamChunk, error) {
	if s.pos >= len(s.chunks) {
		return StreamChunk{}, io.EOF
	}
	chunk := StreamChunk{Content: s.chunks[s.pos]}
	s.pos++
	if s.pos == len(s.chunks) {
		chunk.FinishReason = "stop"
	}
	return chunk, nil
}

func (s *mockStream) Close() error { return nil }

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")
	ctx := context.Background()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := mock.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewProvider("openai", "some-model")
	if err == nil {
		t.Error("expected error for openai provider with missing API key")
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatalf("expected *OllamaProvider, got %T", provider)
	}
	if ollamaP.baseURL != "http://localhost:11434" {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false for Complete")
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message:         ollamaMessage{Role: "assistant", Content: "42"},
			Model:           req.Model,
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 7,
			EvalCount:       3,
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "llama3")
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "what is the answer"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "42" {
		t.Errorf("expected content '42', got %q", resp.Content)
	}
	if resp.InputTokens != 7 || resp.OutputTokens != 3 {
		t.Errorf("unexpected token counts: in=%d out=%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestOllamaStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream=true for Stream")
		}
		enc := json.NewEncoder(w)
		enc.Encode(ollamaChatResponse{Message: ollamaMessage{Content: "Hello"}})
		enc.Encode(ollamaChatResponse{Message: ollamaMessage{Content: " world"}})
		enc.Encode(ollamaChatResponse{Done: true, DoneReason: "stop"})
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "llama3")
	stream, err := provider.Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "greet"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var parts []string
	var finishReason string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if chunk.Content != "" {
			parts = append(parts, chunk.Content)
		}
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}
	}

	got := ""
	for _, p := range parts {
		got += p
	}
	if got != "Hello world" {
		t.Errorf("expected 'Hello world', got %q", got)
	}
	if finishReason != "stop" {
		t.Errorf("expected finish reason 'stop', got %q", finishReason)
	}
}

func TestOllamaStreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "missing")
	_, err := provider.Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	mock := NewMockProvider("test")
	limited := NewRateLimitedProvider(mock, 60)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := limited.Complete(ctx, CompletionRequest{}); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if mock.CallCount() != 5 {
		t.Errorf("expected 5 calls, got %d", mock.CallCount())
	}
}

func TestRateLimiterStreamSharesBucket(t *testing.T) {
	mock := NewMockProvider("test")
	limited := NewRateLimitedProvider(mock, 60)

	stream, err := limited.Stream(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}
	if limited.Name() != "test" {
		t.Errorf("expected wrapped name 'test', got %q", limited.Name())
	}
}

func TestRateLimiterRespectsContextCancellation(t *testing.T) {
	mock := NewMockProvider("test")
	limited := NewRateLimitedProvider(mock, 1)

	ctx := context.Background()
	if _, err := limited.Complete(ctx, CompletionRequest{}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := limited.Complete(cancelCtx, CompletionRequest{})
	if err == nil {
		t.Fatal("expected context error when bucket is empty")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
