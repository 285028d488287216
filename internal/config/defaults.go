package config

// defaultModels maps each provider to its default generation and embedding models.
var defaultModels = map[ProviderType]struct {
	Model          string
	EmbeddingModel string
}{
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".askbook",
		Retrieval: RetrievalConfig{
			K:             5,
			BaseThreshold: 0.7,
			MinThreshold:  0.35,
			MMRLambda:     0.5,
		},
		Chat: ChatConfig{
			ContextWindow:     4096,
			MaxHistory:        20,
			RequestsPerMinute: 60,
		},
		Server: ServerConfig{
			Port:     8080,
			AllowAll: false,
		},
	}
}

// DefaultModelFor returns the default generation model for the given provider.
func DefaultModelFor(provider ProviderType) string {
	if d, ok := defaultModels[provider]; ok {
		return d.Model
	}
	return defaultModels[ProviderOpenAI].Model
}

// DefaultEmbeddingModelFor returns the default embedding model for the given provider.
func DefaultEmbeddingModelFor(provider ProviderType) string {
	if d, ok := defaultModels[provider]; ok {
		return d.EmbeddingModel
	}
	return defaultModels[ProviderOpenAI].EmbeddingModel
}
