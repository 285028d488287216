package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to askbook! Let's configure your deployment.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Generation provider.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	// 2. Generation model.
	modelPrompt := promptui.Prompt{
		Label:   "Generation model",
		Default: DefaultModelFor(cfg.Provider),
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model prompt: %w", err)
	}
	cfg.Model = model

	// 3. Embedding provider. Defaults to the generation provider.
	embedPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{"openai", "ollama"},
	}
	_, embedStr, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}
	cfg.EmbeddingProvider = ProviderType(embedStr)
	cfg.EmbeddingModel = DefaultEmbeddingModelFor(cfg.EmbeddingProvider)

	// 4. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (vector index and session log)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir prompt: %w", err)
	}
	cfg.DataDir = dataDir

	// 5. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP server port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("must be a valid port number")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port prompt: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)

	return cfg, nil
}
