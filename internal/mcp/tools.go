package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchBookTool defines the search_book MCP tool.
var searchBookTool = mcp.NewTool("search_book",
	mcp.WithDescription("Search the indexed book semantically. Returns relevant passages with chapter and section references."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of passages to return (default 5)"),
	),
	mcp.WithString("chapter",
		mcp.Description("Restrict results to a single chapter"),
	),
)

// askBookTool defines the ask_book MCP tool.
var askBookTool = mcp.NewTool("ask_book",
	mcp.WithDescription("Ask a question about the book and get a cited answer generated from the most relevant passages."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("The question to answer"),
	),
	mcp.WithString("session_id",
		mcp.Description("Session ID to continue a previous conversation"),
	),
)
