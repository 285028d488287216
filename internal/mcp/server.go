// Package mcp exposes the book corpus to AI agents over the Model
// Context Protocol: a semantic search tool and a full question-answer
// tool backed by the chat orchestrator.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/kzidane/askbook/internal/chat"
	"github.com/kzidane/askbook/internal/retrieval"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes book search and QA tools.
type Server struct {
	engine       *retrieval.Engine
	orchestrator *chat.Orchestrator
	mcp          *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
// orchestrator may be nil; the ask_book tool then reports that no
// generation provider is configured.
func NewServer(engine *retrieval.Engine, orchestrator *chat.Orchestrator) *Server {
	s := &Server{
		engine:       engine,
		orchestrator: orchestrator,
	}

	s.mcp = server.NewMCPServer(
		"askbook",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchBookTool, s.handleSearchBook)
	s.mcp.AddTool(askBookTool, s.handleAskBook)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
