package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kzidane/askbook/internal/chatapi"
	"github.com/kzidane/askbook/internal/server"
	"github.com/kzidane/askbook/internal/transcript"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP question-answering server",
	Long:  `Starts the HTTP server exposing the chat API (JSON, SSE streaming and WebSocket), the session history API and a health check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Server.Port
		}

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		provider, err := createProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		ctx := context.Background()
		store, err := openStore(ctx, cfg, embedder, false)
		if err != nil {
			return err
		}

		database, err := transcript.Open(transcriptPath(cfg))
		if err != nil {
			return fmt.Errorf("opening transcript database: %w", err)
		}
		defer database.Close()
		transcriptStore := transcript.NewStore(database)

		engine := buildEngine(cfg, embedder, store)
		orch := buildOrchestrator(cfg, engine, provider, transcriptStore)

		srv := server.New(server.Config{
			Port:     port,
			DataDir:  cfg.DataDir,
			AllowAll: cfg.Server.AllowAll,
		}, database, store, embedder, provider, orch)

		chatapi.RegisterRoutes(srv.Router(), orch)
		transcript.RegisterRoutes(srv.Router(), transcriptStore)

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-done
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
			}
		}()

		fmt.Fprintf(os.Stderr, "askbook server ready (passages=%d)\n", store.Count())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
