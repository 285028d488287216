package chatapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kzidane/askbook/internal/chat"
)

// streamChat answers a chat request as server-sent events. Failures
// before the stream opens map to plain HTTP errors; once events flow,
// the terminal error event and the [DONE] marker close the stream.
func streamChat(w http.ResponseWriter, r *http.Request, orch *chat.Orchestrator, req chat.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := orch.StreamChat(r.Context(), req)
	if err != nil {
		status, msg := statusForError(err)
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
