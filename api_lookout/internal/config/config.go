package config

import (
	"strings"
	"time"

	"frameworks/pkg/config"
	"frameworks/pkg/llm"
	"frameworks/pkg/search"
	"frameworks/pkg/version"
)

// Session store backends.
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreNone     = "none"
)

// Config stores environment configuration for Lookout.
type Config struct {
	Port         string
	DatabaseURL  string
	SessionStore string
	RedisAddrs   []string
	RedisPass    string
	SessionTTL   time.Duration
	JWTSecret    string

	LLM    llm.Config
	Search search.Config

	UserAgent          string
	ProbeTimeout       time.Duration
	FetchTimeout       time.Duration
	AITimeout          time.Duration
	SitemapCap         int
	FetchConcurrency   int
	SearchRPS          float64
	MaxCompetitors     int
	AllowPrivateHosts  bool
	PageCacheTTL       time.Duration
	ProgressChannel    string
	MaxRequestDuration time.Duration
}

// LoadConfig loads the Lookout configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		Port:         config.GetEnv("PORT", "18030"),
		DatabaseURL:  config.GetEnv("DATABASE_URL", ""),
		SessionStore: strings.ToLower(config.GetEnv("SESSION_STORE", "")),
		RedisAddrs:   config.GetEnvList("REDIS_ADDRS"),
		RedisPass:    config.GetEnv("REDIS_PASSWORD", ""),
		SessionTTL:   config.GetEnvDuration("SESSION_TTL", 72*time.Hour),
		JWTSecret:    config.GetEnv("JWT_SECRET", ""),

		LLM:    llm.LoadConfig(),
		Search: search.LoadConfig(),

		UserAgent:          config.GetEnv("LOOKOUT_USER_AGENT", version.UserAgent()),
		ProbeTimeout:       config.GetEnvDuration("LOOKOUT_PROBE_TIMEOUT", 10*time.Second),
		FetchTimeout:       config.GetEnvDuration("LOOKOUT_FETCH_TIMEOUT", 15*time.Second),
		AITimeout:          config.GetEnvDuration("LOOKOUT_AI_TIMEOUT", 20*time.Second),
		SitemapCap:         config.GetEnvInt("LOOKOUT_SITEMAP_CAP", 100),
		FetchConcurrency:   config.GetEnvInt("LOOKOUT_FETCH_CONCURRENCY", 5),
		SearchRPS:          config.GetEnvFloat("LOOKOUT_SEARCH_RPS", 2),
		MaxCompetitors:     config.GetEnvInt("LOOKOUT_MAX_COMPETITORS", 10),
		AllowPrivateHosts:  config.GetEnvBool("LOOKOUT_ALLOW_PRIVATE_HOSTS", false),
		PageCacheTTL:       config.GetEnvDuration("LOOKOUT_PAGE_CACHE_TTL", 5*time.Minute),
		ProgressChannel:    config.GetEnv("LOOKOUT_PROGRESS_CHANNEL", "lookout:progress"),
		MaxRequestDuration: config.GetEnvDuration("LOOKOUT_REQUEST_TIMEOUT", 2*time.Minute),
	}
	if cfg.SessionStore == "" {
		cfg.SessionStore = defaultSessionStore(cfg)
	}
	return cfg
}

// defaultSessionStore picks postgres when a database is configured, then
// redis, and otherwise disables persistence.
func defaultSessionStore(cfg Config) string {
	switch {
	case cfg.DatabaseURL != "":
		return SessionStorePostgres
	case len(cfg.RedisAddrs) > 0:
		return SessionStoreRedis
	default:
		return SessionStoreNone
	}
}

// AIEnabled reports whether a completion provider is configured.
func (c Config) AIEnabled() bool {
	return c.LLM.Enabled()
}

// SearchEnabled reports whether a search provider is configured.
func (c Config) SearchEnabled() bool {
	return c.Search.Enabled()
}
