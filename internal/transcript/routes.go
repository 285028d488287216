package transcript

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes mounts session history endpoints under /api/sessions.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/", handleListSessions(store))
		r.Get("/{id}/messages", handleListMessages(store))
		r.Delete("/{id}", handleDeleteSession(store))
	})
}

func handleListSessions(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := store.ListSessions(r.Context())
		if err != nil {
			http.Error(w, "failed to list sessions", http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handleListMessages(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		messages, err := store.ListMessages(r.Context(), id)
		if err != nil {
			http.Error(w, "failed to list messages", http.StatusInternalServerError)
			return
		}
		if messages == nil {
			messages = []StoredMessage{}
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

func handleDeleteSession(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := store.DeleteSession(r.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to delete session", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
