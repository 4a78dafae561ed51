package search

import (
	"fmt"
	"strings"

	"frameworks/pkg/config"
)

const (
	providerTavily  = "tavily"
	providerBrave   = "brave"
	providerSearxng = "searxng"
)

// Config holds environment configuration for search providers.
type Config struct {
	Provider string
	APIKey   string
	APIURL   string
}

// LoadConfig loads search configuration from the environment. An unset
// SEARCH_PROVIDER disables search.
func LoadConfig() Config {
	return Config{
		Provider: strings.ToLower(config.GetEnv("SEARCH_PROVIDER", "")),
		APIKey:   config.GetEnv("SEARCH_API_KEY", ""),
		APIURL:   config.GetEnv("SEARCH_API_URL", ""),
	}
}

// Enabled reports whether a provider was configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Provider) != ""
}

// HealthURL is the endpoint to probe for a self-hosted SearXNG, or "" for
// hosted APIs.
func (c Config) HealthURL() string {
	if c.Provider != providerSearxng || strings.TrimSpace(c.APIURL) == "" {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(c.APIURL), "/") + "/healthz"
}

// NewProvider creates a search provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case providerTavily:
		return NewTavilyProvider(cfg.APIKey, cfg.APIURL)
	case providerBrave:
		return NewBraveProvider(cfg.APIKey, cfg.APIURL)
	case providerSearxng:
		return NewSearxngProvider(cfg.APIURL)
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
