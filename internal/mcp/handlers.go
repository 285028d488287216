package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kzidane/askbook/internal/chat"
	"github.com/kzidane/askbook/internal/retrieval"
	"github.com/kzidane/askbook/internal/vectordb"
)

// handleSearchBook performs semantic search over the book corpus.
func (s *Server) handleSearchBook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	opts := retrieval.Options{K: limit}
	if chapter := request.GetString("chapter", ""); chapter != "" {
		opts.Filter = &vectordb.SearchFilter{Chapter: &chapter}
	}

	results, err := s.engine.Retrieve(ctx, query, opts)
	if err != nil {
		if errors.Is(err, retrieval.ErrInvalidQuery) {
			return mcp.NewToolResultError("query is empty or too short"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No passages found. The book may not be indexed yet. Run `askbook index` to index it."), nil
	}

	return mcp.NewToolResultText(formatResults(results)), nil
}

// handleAskBook runs a full retrieval-augmented answer for a question.
func (s *Server) handleAskBook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	if s.orchestrator == nil {
		return mcp.NewToolResultError("no generation provider configured; use search_book instead"), nil
	}

	answer, err := s.orchestrator.Chat(ctx, chat.Request{
		Query:     query,
		SessionID: request.GetString("session_id", ""),
	})
	if err != nil {
		switch {
		case errors.Is(err, retrieval.ErrInvalidQuery):
			return mcp.NewToolResultError("query is empty or too short"), nil
		case errors.Is(err, chat.ErrNoContent):
			return mcp.NewToolResultError("no relevant content found; try a more specific question about the book's topics"), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
		}
	}

	return mcp.NewToolResultText(formatAnswer(answer)), nil
}

// formatResults converts retrieval results into a rich text format
// optimized for AI agent consumption.
func formatResults(results []retrieval.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d passage(s):\n", len(results)))

	for _, res := range results {
		meta := res.Chunk.Meta
		sb.WriteString(fmt.Sprintf("\n--- Passage %d (score %.2f) ---\n", res.Rank, res.Score))
		if meta.Chapter != "" {
			sb.WriteString(fmt.Sprintf("Chapter: %s", meta.Chapter))
			if meta.Section != "" {
				sb.WriteString(fmt.Sprintf(" / Section: %s", meta.Section))
			}
			sb.WriteString("\n")
		}
		sb.WriteString(res.Chunk.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatAnswer(answer *chat.Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Answer)
	if len(answer.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for i, src := range answer.Sources {
			sb.WriteString(fmt.Sprintf("%d. ", i+1))
			if src.Chapter != "" {
				sb.WriteString(fmt.Sprintf("Chapter %s", src.Chapter))
				if src.Section != "" {
					sb.WriteString(fmt.Sprintf(", %s", src.Section))
				}
				sb.WriteString(" - ")
			}
			sb.WriteString(fmt.Sprintf("score %.2f\n", src.RelevanceScore))
		}
	}
	sb.WriteString(fmt.Sprintf("\nsession_id: %s", answer.SessionID))
	return sb.String()
}
