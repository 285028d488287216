package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kzidane/askbook/internal/chat"
	"github.com/kzidane/askbook/internal/config"
	"github.com/kzidane/askbook/internal/conversation"
	"github.com/kzidane/askbook/internal/embeddings"
	"github.com/kzidane/askbook/internal/llm"
	"github.com/kzidane/askbook/internal/retrieval"
	"github.com/kzidane/askbook/internal/tokens"
	"github.com/kzidane/askbook/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `askbook init` to create a config file", err)
	}
	return cfg, nil
}

// vectorDir returns where the vector index lives under the data dir.
func vectorDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "vectordb")
}

// transcriptPath returns where the transcript database lives.
func transcriptPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "transcript.db")
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config,
// wrapped with retry and token capping.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.DefaultEmbeddingModelFor(provider)
	}

	var inner embeddings.Embedder
	switch provider {
	case config.ProviderOllama:
		inner = embeddings.NewOllamaEmbedder(model, 768, "")
	default:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		inner = embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model))
	}

	return embeddings.NewRetryEmbedder(inner, tokens.NewEstimator()), nil
}

// createProviderFromConfig creates the generation provider with rate limiting.
func createProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	model := cfg.Model
	if model == "" {
		model = config.DefaultModelFor(cfg.Provider)
	}
	provider, err := llm.NewProvider(string(cfg.Provider), model)
	if err != nil {
		return nil, err
	}
	if cfg.Chat.RequestsPerMinute > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.Chat.RequestsPerMinute)
	}
	return provider, nil
}

// openStore creates the vector store and loads the persisted index if
// one exists. requireIndex makes a missing index an error instead of a
// warning.
func openStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, requireIndex bool) (vectordb.VectorStore, error) {
	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	dir := vectorDir(cfg)
	if err := store.Load(ctx, dir); err != nil {
		if requireIndex {
			return nil, fmt.Errorf("loading vector store from %s: %w\nRun `askbook index` first to build the index", dir, err)
		}
		fmt.Fprintf(os.Stderr, "Warning: could not load vector store from %s: %v\n", dir, err)
		fmt.Fprintf(os.Stderr, "Retrieval will return nothing. Run `askbook index` first.\n")
	}
	return store, nil
}

// buildEngine constructs the retrieval engine from config tuning.
func buildEngine(cfg *config.Config, embedder embeddings.Embedder, store vectordb.VectorStore) *retrieval.Engine {
	return retrieval.NewEngine(embedder, store, retrieval.Config{
		DefaultK:      cfg.Retrieval.K,
		BaseThreshold: cfg.Retrieval.BaseThreshold,
		MinThreshold:  cfg.Retrieval.MinThreshold,
	})
}

// buildOrchestrator wires the chat orchestrator. transcript may be nil.
func buildOrchestrator(cfg *config.Config, engine *retrieval.Engine, provider llm.Provider, transcript chat.TranscriptSink) *chat.Orchestrator {
	counter := tokens.NewEstimator()
	convStore := conversation.NewMemoryStore(chat.DefaultSystemPrompt, counter, cfg.Chat.MaxHistory)

	model := cfg.Model
	if model == "" {
		model = config.DefaultModelFor(cfg.Provider)
	}

	return chat.NewOrchestrator(engine, provider, convStore, counter, transcript, chat.Settings{
		Model:         model,
		DefaultK:      cfg.Retrieval.K,
		ContextWindow: cfg.Chat.ContextWindow,
		MMRLambda:     cfg.Retrieval.MMRLambda,
	})
}
