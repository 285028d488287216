package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level askbook configuration, corresponding to .askbook.yml.
type Config struct {
	Provider          ProviderType    `yaml:"provider" koanf:"provider"`
	Model             string          `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType    `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string          `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string          `yaml:"data_dir" koanf:"data_dir"`
	Retrieval         RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Chat              ChatConfig      `yaml:"chat" koanf:"chat"`
	Server            ServerConfig    `yaml:"server" koanf:"server"`
}

// RetrievalConfig tunes the retrieval engine.
type RetrievalConfig struct {
	K             int     `yaml:"k" koanf:"k"`
	BaseThreshold float64 `yaml:"base_threshold" koanf:"base_threshold"`
	MinThreshold  float64 `yaml:"min_threshold" koanf:"min_threshold"`
	MMRLambda     float64 `yaml:"mmr_lambda" koanf:"mmr_lambda"`
}

// ChatConfig tunes the conversational orchestrator.
type ChatConfig struct {
	ContextWindow     int `yaml:"context_window" koanf:"context_window"`
	MaxHistory        int `yaml:"max_history" koanf:"max_history"`
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
