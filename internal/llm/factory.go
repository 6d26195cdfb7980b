package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/normanking/typhoon/internal/config"
)

// NewProvider creates the configured completion backend, wrapped with
// metrics collection.
func NewProvider(cfg *config.Config) (*MetricsProvider, error) {
	providerName := cfg.LLM.DefaultProvider
	if providerName == "" {
		providerName = "hf-router"
	}

	providerCfg, exists := cfg.LLM.Providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %q not found in configuration", providerName)
	}

	apiKey := providerCfg.APIKey
	if apiKey == "" {
		apiKey = apiKeyFromEnv(providerName)
	}

	endpoint := providerCfg.Endpoint
	if endpoint == "" && providerName == "ollama" {
		endpoint = os.Getenv("OLLAMA_HOST")
	}

	llmCfg := &Config{
		Name:     providerName,
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    providerCfg.Model,
	}
	if providerCfg.TimeoutSec > 0 {
		llmCfg.Timeout = time.Duration(providerCfg.TimeoutSec) * time.Second
	}

	var provider Provider
	switch providerName {
	case "hf-router", "openai":
		provider = NewOpenAIProvider(llmCfg, providerName)
	case "ollama":
		provider = NewOllamaProvider(llmCfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}

	return NewMetricsProvider(provider), nil
}

// apiKeyFromEnv retrieves the API key from the provider's conventional
// environment variable.
func apiKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"hf-router": "HF_TOKEN",
		"openai":    "OPENAI_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}
