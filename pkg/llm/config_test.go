package llm

import (
	"os"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_API_URL", "LLM_MAX_TOKENS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadConfig()

	if cfg.Provider != "" || cfg.Enabled() {
		t.Errorf("Provider = %q, want disabled", cfg.Provider)
	}
	if cfg.Model != "" {
		t.Errorf("Model = %q, want empty", cfg.Model)
	}
	if cfg.MaxTokens != 0 {
		t.Errorf("MaxTokens = %d, want 0", cfg.MaxTokens)
	}
}

func TestLoadConfig_Override(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("LLM_MODEL", "claude-sonnet-4-5-20250929")
	t.Setenv("LLM_API_KEY", "sk-ant")
	t.Setenv("LLM_API_URL", "https://proxy.internal")
	t.Setenv("LLM_MAX_TOKENS", "2048")

	cfg := LoadConfig()

	if cfg.Provider != "anthropic" || !cfg.Enabled() {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "anthropic")
	}
	if cfg.APIKey != "sk-ant" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "sk-ant")
	}
	if cfg.APIURL != "https://proxy.internal" {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, "https://proxy.internal")
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d, want 2048", cfg.MaxTokens)
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "mystery"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	p, err := NewProvider(Config{Provider: "Anthropic", Model: "m"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, ok := p.(*AnthropicProvider); !ok {
		t.Fatalf("expected *AnthropicProvider, got %T", p)
	}
}

func TestConfigHealthURL(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Provider: "ollama"}, "http://localhost:11434/v1/models"},
		{Config{Provider: "ollama", APIURL: "http://gpu-box:11434/v1/"}, "http://gpu-box:11434/v1/models"},
		{Config{Provider: "openai"}, ""},
		{Config{}, ""},
	}
	for _, tc := range cases {
		if got := tc.cfg.HealthURL(); got != tc.want {
			t.Errorf("HealthURL(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}
