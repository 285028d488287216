package chatapi

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kzidane/askbook/internal/chat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	K         int    `json:"k,omitempty"`
}

// handleWebSocket serves interactive chat over a WebSocket. Each client
// message starts one streamed answer; events are forwarded as JSON in
// the same shape as the SSE payloads.
func handleWebSocket(orch *chat.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("chatapi: websocket upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("chatapi: websocket read: %v", err)
				}
				return
			}

			events, err := orch.StreamChat(r.Context(), chat.Request{
				Query:     req.Query,
				SessionID: req.SessionID,
				K:         req.K,
			})
			if err != nil {
				_, msg := statusForError(err)
				if writeErr := conn.WriteJSON(chat.Event{Type: chat.EventError, SessionID: req.SessionID, Error: msg}); writeErr != nil {
					return
				}
				continue
			}

			for ev := range events {
				if err := conn.WriteJSON(ev); err != nil {
					log.Printf("chatapi: websocket write: %v", err)
					return
				}
			}
		}
	}
}
