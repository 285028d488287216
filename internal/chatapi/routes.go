// Package chatapi exposes the chat orchestrator over HTTP: a JSON
// request/response mode, a server-sent-event streaming mode, and a
// WebSocket channel for interactive clients.
package chatapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kzidane/askbook/internal/chat"
	"github.com/kzidane/askbook/internal/embeddings"
	"github.com/kzidane/askbook/internal/retrieval"
)

// chatRequest is the incoming request body for POST /api/chat.
type chatRequest struct {
	Query         string `json:"query"`
	SessionID     string `json:"session_id,omitempty"`
	K             int    `json:"k,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`
	Stream        bool   `json:"stream,omitempty"`
}

// RegisterRoutes mounts the chat endpoints on the given router.
func RegisterRoutes(r chi.Router, orch *chat.Orchestrator) {
	r.Post("/api/chat", handleChat(orch))
	r.Get("/api/chat/ws", handleWebSocket(orch))
}

func handleChat(orch *chat.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		chatReq := chat.Request{
			Query:         req.Query,
			SessionID:     req.SessionID,
			K:             req.K,
			ContextWindow: req.ContextWindow,
		}

		if req.Stream {
			streamChat(w, r, orch, chatReq)
			return
		}

		answer, err := orch.Chat(r.Context(), chatReq)
		if err != nil {
			status, msg := statusForError(err)
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, answer)
	}
}

// statusForError maps orchestrator errors onto HTTP statuses without
// leaking upstream error bodies.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery), errors.Is(err, embeddings.ErrInvalidInput):
		return http.StatusBadRequest, "query is empty or too short"
	case errors.Is(err, chat.ErrNoContent):
		return http.StatusNotFound, "no relevant content found; try a more specific question about the book's topics"
	case errors.Is(err, embeddings.ErrRateLimited):
		return http.StatusTooManyRequests, "embedding service is rate limited, retry shortly"
	case errors.Is(err, chat.ErrGeneration):
		return http.StatusBadGateway, "generation service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
