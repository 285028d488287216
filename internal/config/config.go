package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// envPrefix is the prefix for environment variable overrides.
const envPrefix = "ASKBOOK_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (ASKBOOK_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: ASKBOOK_MODEL -> model,
	// ASKBOOK_SERVER_PORT -> server.port, etc.
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envTransform maps environment variable names to config keys. Section
// prefixes become nested keys; underscores inside a key are preserved
// (ASKBOOK_RETRIEVAL_BASE_THRESHOLD -> retrieval.base_threshold).
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range []string{"retrieval_", "chat_", "server_"} {
		if strings.HasPrefix(s, section) {
			return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(s, section)
		}
	}
	return s
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, ollama", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive")
	}
	if c.Retrieval.BaseThreshold < 0 || c.Retrieval.BaseThreshold > 1 {
		return fmt.Errorf("retrieval.base_threshold must be in [0,1]")
	}
	if c.Retrieval.MinThreshold < 0 || c.Retrieval.MinThreshold > c.Retrieval.BaseThreshold {
		return fmt.Errorf("retrieval.min_threshold must be in [0, base_threshold]")
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		return fmt.Errorf("retrieval.mmr_lambda must be in [0,1]")
	}

	if c.Chat.ContextWindow <= 0 {
		return fmt.Errorf("chat.context_window must be positive")
	}
	if c.Chat.MaxHistory < 0 {
		return fmt.Errorf("chat.max_history must be non-negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider. Ollama needs no key.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
