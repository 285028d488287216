package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kzidane/askbook/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed book",
	Long:  `Answers a question using the indexed passages, streaming the answer to the terminal and printing the cited sources afterward.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().Int("k", 0, "number of passages to retrieve (overrides config)")
	askCmd.Flags().String("session", "", "session ID to continue a conversation")
	askCmd.Flags().Bool("json", false, "print the full answer as JSON instead of streaming")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	k, _ := cmd.Flags().GetInt("k")
	sessionID, _ := cmd.Flags().GetString("session")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	provider, err := createProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	store, err := openStore(ctx, cfg, embedder, true)
	if err != nil {
		return err
	}
	if store.Count() == 0 {
		fmt.Println("The index is empty. Run `askbook index` first.")
		return nil
	}

	engine := buildEngine(cfg, embedder, store)
	orch := buildOrchestrator(cfg, engine, provider, nil)

	req := chat.Request{Query: question, SessionID: sessionID, K: k}

	if jsonOutput {
		answer, err := orch.Chat(ctx, req)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	events, err := orch.StreamChat(ctx, req)
	if err != nil {
		return err
	}

	var sources []chat.Citation
	for ev := range events {
		switch ev.Type {
		case chat.EventStart:
			sources = ev.Sources
		case chat.EventChunk:
			fmt.Print(ev.Content)
		case chat.EventDone:
			fmt.Printf("\n\n(session %s, %.1fs)\n", ev.SessionID, ev.ResponseTime)
		case chat.EventError:
			fmt.Println()
			return fmt.Errorf("%s", ev.Error)
		}
	}

	if len(sources) > 0 {
		fmt.Println("\nSources:")
		for i, src := range sources {
			fmt.Printf("  %d. ", i+1)
			if src.Chapter != "" {
				fmt.Printf("Chapter %s", src.Chapter)
				if src.Section != "" {
					fmt.Printf(" / %s", src.Section)
				}
				fmt.Print(" - ")
			}
			fmt.Printf("score %.2f\n", src.RelevanceScore)
		}
	}
	return nil
}
