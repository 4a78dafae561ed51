package main

import (
	"context"
	"time"

	"frameworks/api_lookout/internal/business"
	lookoutcfg "frameworks/api_lookout/internal/config"
	"frameworks/api_lookout/internal/fetch"
	"frameworks/api_lookout/internal/handlers"
	"frameworks/api_lookout/internal/intel"
	"frameworks/api_lookout/internal/pipeline"
	"frameworks/api_lookout/internal/platform"
	"frameworks/api_lookout/internal/resolver"
	"frameworks/api_lookout/internal/seo"
	"frameworks/api_lookout/internal/session"
	"frameworks/api_lookout/internal/sitemap"
	"frameworks/api_lookout/internal/style"
	"frameworks/pkg/auth"
	"frameworks/pkg/config"
	"frameworks/pkg/database"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
	"frameworks/pkg/middleware"
	"frameworks/pkg/monitoring"
	"frameworks/pkg/redis"
	"frameworks/pkg/search"
	"frameworks/pkg/server"
	"frameworks/pkg/version"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	logger := logging.NewLoggerWithService("lookout")
	config.LoadEnv(logger)
	cfg := lookoutcfg.LoadConfig()

	healthChecker := monitoring.NewHealthChecker("lookout", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("lookout", version.Version, version.GitCommit)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// A nil completer leaves every stage on its deterministic path.
	var completer llm.StructuredCompleter
	if cfg.AIEnabled() {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			logger.WithError(err).Fatal("Failed to configure LLM provider")
		}
		completer = llm.NewStructuredCompleter(provider, logger)
	} else {
		logger.Warn("LLM_PROVIDER not set, AI assistance disabled")
	}

	var searchProvider search.Provider
	if cfg.SearchEnabled() {
		p, err := search.NewProvider(cfg.Search)
		if err != nil {
			logger.WithError(err).Fatal("Failed to configure search provider")
		}
		searchProvider = p
	} else {
		logger.Warn("SEARCH_PROVIDER not set, competitor discovery limited to AI suggestions")
	}

	client := fetch.NewClient(fetch.ClientConfig{AllowPrivate: cfg.AllowPrivateHosts})
	fetcher := fetch.NewFetcher(client,
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithLogger(logger),
		fetch.WithPageCache(cfg.PageCacheTTL),
	)

	var redisClient goredis.UniversalClient
	if len(cfg.RedisAddrs) > 0 {
		rcfg := redis.LoadConfig()
		rcfg.Addrs = cfg.RedisAddrs
		rcfg.Password = cfg.RedisPass
		c, err := redis.NewUniversalClient(ctx, rcfg)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer func() { _ = c.Close() }()
		redisClient = c
		healthChecker.AddCheck("redis", monitoring.DegradedPingHealthCheck("redis", monitoring.PingerFunc(func(ctx context.Context) error {
			return c.Ping(ctx).Err()
		})))
	}

	var sessions session.Store = session.Noop{}
	switch cfg.SessionStore {
	case lookoutcfg.SessionStorePostgres:
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		db, err := database.Connect(ctx, dbCfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer func() { _ = db.Close() }()
		store := session.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to prepare session schema")
		}
		sessions = store
		healthChecker.AddCheck("database", monitoring.PingHealthCheck("database", db))
	case lookoutcfg.SessionStoreRedis:
		if redisClient == nil {
			logger.Fatal("SESSION_STORE=redis requires REDIS_ADDRS")
		}
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL)
	default:
		logger.Info("Session persistence disabled")
	}

	var progress pipeline.ProgressPublisher
	if redisClient != nil {
		progress = pipeline.NewRedisProgress(redisClient, cfg.ProgressChannel, logger)
	}

	crawler := pipeline.New(pipeline.Config{
		Resolver:    resolver.New(completer, cfg.AITimeout, logger),
		Prober:      fetch.NewProber(client, cfg.ProbeTimeout, cfg.UserAgent, logger),
		Fetcher:     fetcher,
		Sitemaps:    sitemap.NewReader(fetcher, cfg.SitemapCap, cfg.UserAgent, logger),
		Auditor:     seo.NewAuditor(completer, cfg.AITimeout, logger),
		Extractor:   business.NewExtractor(completer, cfg.AITimeout, logger),
		Progress:    progress,
		Logger:      logger,
		Concurrency: cfg.FetchConcurrency,
	})

	if u := cfg.LLM.HealthURL(); u != "" {
		healthChecker.AddCheck("llm", monitoring.HTTPServiceHealthCheck("ollama", u))
	}
	if u := cfg.Search.HealthURL(); u != "" {
		healthChecker.AddCheck("search", monitoring.HTTPServiceHealthCheck("searxng", u))
	}
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"JWT_SECRET": cfg.JWTSecret,
	}))

	app := server.SetupServiceRouter(logger, "lookout", healthChecker, metricsCollector)

	api := app.Group("/api/lookout")
	api.Use(auth.JWTAuthMiddleware([]byte(cfg.JWTSecret)))
	api.Use(middleware.TimeoutMiddleware(cfg.MaxRequestDuration))

	handlers.New(handlers.Deps{
		Crawler:  crawler,
		Keywords: intel.NewKeywordGenerator(completer, cfg.AITimeout, logger),
		Competitors: intel.NewCompetitorFinder(intel.CompetitorConfig{
			Search:         searchProvider,
			Completer:      completer,
			AITimeout:      cfg.AITimeout,
			SearchTimeout:  cfg.FetchTimeout,
			SearchRPS:      cfg.SearchRPS,
			MaxCompetitors: cfg.MaxCompetitors,
			Logger:         logger,
		}),
		Platform: platform.NewDetector(fetcher),
		Style:    style.NewAnalyzer(fetcher, completer, cfg.AITimeout, logger),
		Sessions: sessions,
		Logger:   logger,
	}).Register(api)

	cancel()

	serverConfig := server.DefaultConfig("lookout", cfg.Port)
	if err := server.Start(serverConfig, app, logger); err != nil {
		logger.Fatal(err.Error())
	}
}
