package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/kzidane/askbook/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing book search and question answering tools for AI agents like Claude Code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		store, err := openStore(context.Background(), cfg, embedder, false)
		if err != nil {
			return err
		}

		engine := buildEngine(cfg, embedder, store)

		// The ask_book tool needs a generation provider; search_book works
		// without one. Degrade rather than fail when no provider is usable.
		srv := mcpserver.NewServer(engine, nil)
		if provider, err := createProviderFromConfig(cfg); err == nil {
			srv = mcpserver.NewServer(engine, buildOrchestrator(cfg, engine, provider, nil))
		} else {
			fmt.Fprintf(os.Stderr, "Warning: no generation provider available (%v); ask_book disabled\n", err)
		}

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "askbook MCP server started on stdio (passages=%d)\n", store.Count())
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
