package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"nfc.app/facilitator/common/arangodb"
	"nfc.app/facilitator/common/cache"
	"nfc.app/facilitator/common/id"
	"nfc.app/facilitator/common/llm"
	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/common/otel"
	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/core/db"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/generator"
	"nfc.app/facilitator/internal/http/middleware"
	httprouter "nfc.app/facilitator/internal/http/router"
	"nfc.app/facilitator/internal/lock"
	"nfc.app/facilitator/internal/queue"
	"nfc.app/facilitator/internal/service"
	"nfc.app/facilitator/internal/store"
)

const (
	statsCacheTTL  = 30 * time.Second
	statsCacheSize = 1024
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet: OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "facilitator starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database connected")

	settings := facilitator.NewSettings(cfg.Facilitator)
	policy := facilitator.LoadPolicyOrDefault(ctx, cfg.Facilitator.PolicyFile)

	gen, err := setupGenerator(cfg.LLM)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize generator", "error", err)
		os.Exit(1)
	}

	finder, closeFinder, err := setupArticleFinder(ctx, cfg.ArangoDB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize article catalog", "error", err)
		os.Exit(1)
	}
	defer closeFinder()

	stores := store.NewStores(database.Conn())
	txRunner := service.NewTxRunner(database)

	engine := facilitator.NewEngine(stores, txRunner, facilitator.NewKeywordObserver(policy), gen, settings,
		facilitator.WithArticleFinder(finder),
	)

	deps := service.Deps{
		Stores:     stores,
		TxRunner:   txRunner,
		Engine:     engine,
		Locker:     lock.NewKeyedMutex(),
		Producer:   queue.NopProducer{},
		StatsCache: cache.NewMemoryCache(statsCacheSize, statsCacheTTL),
		Settings:   settings,
		Replies:    facilitator.NewKeywordReplyMatcher(policy),
	}

	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.Stream)

		eventProducer := queue.NewRedisProducer(redisClient, cfg.Redis.Stream, nil)
		defer eventProducer.Close()

		deps.Locker = lock.NewRedisLocker(redisClient, "facilitator:lock:", cfg.Redis.LockTTL)
		deps.Producer = eventProducer
		deps.StatsCache = cache.NewRedisCache(redisClient, "facilitator:cache:", statsCacheTTL)
	} else {
		slog.InfoContext(ctx, "redis disabled, using in-process locks and cache")
	}

	services := service.NewServices(deps)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// setupGenerator prefers the LLM and falls back to templates when it fails or
// is not configured.
func setupGenerator(cfg config.LLMConfig) (facilitator.Generator, error) {
	templates := generator.NewTemplateGenerator(generator.DefaultTemplates())
	if !cfg.Enabled() {
		slog.Info("llm disabled, using template generator")
		return templates, nil
	}

	client, err := llm.New(llm.Config{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	slog.Info("llm generator enabled", "provider", cfg.Provider, "model", client.Model())

	return generator.NewFallback(generator.NewLLMGenerator(client), templates), nil
}

// setupArticleFinder serves articles from the knowledge graph when ArangoDB
// is configured, otherwise from the embedded catalog.
func setupArticleFinder(ctx context.Context, cfg config.ArangoDBConfig) (facilitator.ArticleFinder, func(), error) {
	articles := generator.DefaultArticles()
	if !cfg.Enabled() {
		slog.InfoContext(ctx, "arangodb disabled, using embedded article catalog", "articles", len(articles))
		return generator.NewStaticCatalog(articles), func() {}, nil
	}

	client, err := arangodb.New(ctx, arangodb.Config{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() { _ = client.Close() }

	if err := client.EnsureDatabase(ctx); err != nil {
		closeClient()
		return nil, nil, err
	}
	if err := client.EnsureCollections(ctx); err != nil {
		closeClient()
		return nil, nil, err
	}
	if err := client.EnsureGraph(ctx); err != nil {
		closeClient()
		return nil, nil, err
	}
	if err := client.IngestArticles(ctx, generator.GraphArticles(articles)); err != nil {
		closeClient()
		return nil, nil, err
	}
	slog.InfoContext(ctx, "arangodb article graph ready", "database", cfg.Database)

	return generator.NewGraphCatalog(client), closeClient, nil
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		TraceHeaderName: cfg.Redis.TraceHeaderName,
	})

	return router
}

const banner = `
 _____          _ _ _ _        _
|  ___|_ _  ___(_) (_) |_ __ _| |_ ___  _ __
| |_ / _' |/ __| | | | __/ _' | __/ _ \| '__|
|  _| (_| | (__| | | | || (_| | || (_) | |
|_|  \__,_|\___|_|_|_|\__\__,_|\__\___/|_|
`
