package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kzidane/askbook/internal/corpus"
	"github.com/kzidane/askbook/internal/progress"
	"github.com/kzidane/askbook/internal/vectordb"
)

var indexCmd = &cobra.Command{
	Use:   "index [snapshot.jsonl]",
	Short: "Index a book snapshot into the vector store",
	Long: `Loads a pre-chunked corpus snapshot (JSONL, one passage per line with
chapter/section metadata) into the vector store, embedding each passage,
and persists the index under the data directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	snapshotPath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	passages, err := corpus.LoadFile(snapshotPath)
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		return fmt.Errorf("snapshot %s contains no passages", snapshotPath)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	// Existing index data is extended, not replaced.
	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	if err := store.Load(ctx, vectorDir(cfg)); err == nil {
		fmt.Printf("Loaded existing index with %d passages\n", store.Count())
	}

	reporter := progress.NewReporter()
	if err := corpus.Index(ctx, store, passages, reporter); err != nil {
		return err
	}

	dir := vectorDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := store.Persist(ctx, dir); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}

	fmt.Printf("Indexed %d passages (%d total in store)\n", len(passages), store.Count())
	return nil
}
