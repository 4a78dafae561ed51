package llm

import (
	"fmt"
	"strings"

	"frameworks/pkg/config"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

func LoadConfig() Config {
	return Config{
		Provider:  strings.ToLower(config.GetEnv("LLM_PROVIDER", "")),
		Model:     config.GetEnv("LLM_MODEL", ""),
		APIKey:    config.GetEnv("LLM_API_KEY", ""),
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 0),
	}
}

// Enabled reports whether a provider was configured. An unset LLM_PROVIDER
// leaves AI assistance off.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Provider) != ""
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// HealthURL is the endpoint to probe for self-hosted providers, or "" when
// the provider is a hosted API.
func (c Config) HealthURL() string {
	if c.Provider != "ollama" {
		return ""
	}
	base := strings.TrimSpace(c.APIURL)
	if base == "" {
		base = defaultOllamaURL
	}
	return strings.TrimRight(base, "/") + "/models"
}
