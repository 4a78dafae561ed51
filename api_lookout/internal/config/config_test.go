package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "SESSION_STORE", "REDIS_ADDRS", "LLM_PROVIDER", "SEARCH_PROVIDER", "LOOKOUT_PROBE_TIMEOUT", "LOOKOUT_SITEMAP_CAP"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.Port != "18030" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.ProbeTimeout != 10*time.Second || cfg.FetchTimeout != 15*time.Second || cfg.AITimeout != 20*time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg)
	}
	if cfg.SitemapCap != 100 || cfg.FetchConcurrency != 5 || cfg.MaxCompetitors != 10 {
		t.Fatalf("unexpected caps %+v", cfg)
	}
	if cfg.SearchRPS != 2 {
		t.Fatalf("expected 2 rps, got %v", cfg.SearchRPS)
	}
	if cfg.SessionStore != SessionStoreNone {
		t.Fatalf("expected no session store, got %q", cfg.SessionStore)
	}
	if cfg.AllowPrivateHosts {
		t.Fatalf("private hosts must be blocked by default")
	}
	if cfg.AIEnabled() || cfg.SearchEnabled() {
		t.Fatalf("expected AI and search disabled without providers")
	}
	if cfg.UserAgent == "" {
		t.Fatalf("expected a default user agent")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOOKOUT_PROBE_TIMEOUT", "3s")
	t.Setenv("LOOKOUT_SITEMAP_CAP", "50")
	t.Setenv("LOOKOUT_ALLOW_PRIVATE_HOSTS", "true")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("REDIS_ADDRS", "localhost:6379")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_STORE", "")

	cfg := LoadConfig()
	if cfg.Port != "9000" || cfg.ProbeTimeout != 3*time.Second || cfg.SitemapCap != 50 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.AllowPrivateHosts || !cfg.AIEnabled() {
		t.Fatalf("expected flags to be set")
	}
	if cfg.SessionStore != SessionStoreRedis {
		t.Fatalf("expected redis session store, got %q", cfg.SessionStore)
	}
}

func TestLoadConfigExplicitSessionStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lookout")
	t.Setenv("SESSION_STORE", "None")

	if cfg := LoadConfig(); cfg.SessionStore != SessionStoreNone {
		t.Fatalf("explicit store should win, got %q", cfg.SessionStore)
	}
}
