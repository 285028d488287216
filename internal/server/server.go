package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kzidane/askbook/internal/chat"
	"github.com/kzidane/askbook/internal/embeddings"
	"github.com/kzidane/askbook/internal/llm"
	"github.com/kzidane/askbook/internal/transcript"
	"github.com/kzidane/askbook/internal/vectordb"
)

// Config holds server configuration.
type Config struct {
	Port     int
	DataDir  string // directory for the vector index and transcript DB
	AllowAll bool   // allow all CORS origins (dev mode)
}

// Server hosts the question-answering API.
type Server struct {
	cfg          Config
	db           *transcript.DB
	store        vectordb.VectorStore
	embedder     embeddings.Embedder
	llmProvider  llm.Provider
	orchestrator *chat.Orchestrator
	router       chi.Router
	httpServer   *http.Server
}

// New creates a server with all dependencies.
func New(cfg Config, database *transcript.DB, store vectordb.VectorStore, embedder embeddings.Embedder, llmProvider llm.Provider, orchestrator *chat.Orchestrator) *Server {
	s := &Server{
		cfg:          cfg,
		db:           database,
		store:        store,
		embedder:     embedder,
		llmProvider:  llmProvider,
		orchestrator: orchestrator,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware. No global request timeout: streamed chat answers can
	// legitimately outlive any fixed deadline, so timeouts are applied
	// per route group instead.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(60 * time.Second))

		// Health check
		g.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Index stats
		g.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			count := 0
			if s.store != nil {
				count = s.store.Count()
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"passages":%d}`, count)
		})
	})

	// API routes are registered by feature packages via RegisterRoutes.
	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the transcript database connection.
func (s *Server) Database() *transcript.DB { return s.db }

// Store returns the vector store.
func (s *Server) Store() vectordb.VectorStore { return s.store }

// Embedder returns the embedder.
func (s *Server) Embedder() embeddings.Embedder { return s.embedder }

// LLMProvider returns the LLM provider.
func (s *Server) LLMProvider() llm.Provider { return s.llmProvider }

// Orchestrator returns the chat orchestrator.
func (s *Server) Orchestrator() *chat.Orchestrator { return s.orchestrator }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	// WriteTimeout stays zero: it would close SSE responses mid-stream.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("askbook server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
