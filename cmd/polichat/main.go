package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/polichat/polichat/internal/application/orchestrator"
	"github.com/polichat/polichat/internal/application/pipeline"
	"github.com/polichat/polichat/internal/application/runtime"
	"github.com/polichat/polichat/internal/application/stream"
	"github.com/polichat/polichat/internal/config"
	"github.com/polichat/polichat/pkg/adapters/docs"
	"github.com/polichat/polichat/pkg/adapters/embeddings"
	redishistory "github.com/polichat/polichat/pkg/adapters/history/redis"
	"github.com/polichat/polichat/pkg/adapters/llm"
	"github.com/polichat/polichat/pkg/adapters/metrics/prometheus"
	"github.com/polichat/polichat/pkg/adapters/vectorstore/pgvector"
	"github.com/polichat/polichat/pkg/api/http"
	"github.com/polichat/polichat/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting polichat",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Redis: conversation store
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	conversations := redishistory.NewConversationStore(redisClient, cfg.Redis.SessionTTL, logger)

	// Embeddings and pgvector retrieval
	embedder, err := embeddings.NewOpenAIEmbedder(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Token:   cfg.Embeddings.Token,
		Model:   cfg.Embeddings.Model,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create embedder", zap.Error(err))
	}

	vectorStore, err := pgvector.New(ctx, pgvector.Config{
		DatabaseURL: cfg.Postgres.URL,
		Dimensions:  cfg.Postgres.Dimensions,
		MaxConns:    cfg.Postgres.MaxConns,
		MinConns:    cfg.Postgres.MinConns,
	}, embedder, logger)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	// LLM client
	llmClient, err := llm.NewClient(&llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.DefaultModel,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}

	// Document handling
	downloader := docs.NewHTTPDownloader(cfg.Retrieval.DownloadTimeout, cfg.Retrieval.MaxDownloadBytes, logger)
	processor, err := docs.NewProcessor(
		docs.PlainTextExtractor{},
		vectorStore,
		docs.Chunker{
			SentencesPerChunk: cfg.Retrieval.SentencesPerChunk,
			Overlap:           cfg.Retrieval.ChunkOverlap,
		},
		cfg.Retrieval.ProcessorPoolSize,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create document processor", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Application components
	deps := pipeline.Deps{
		Conversations: conversations,
		LLM:           llmClient,
		Policy:        vectorStore,
		Documents:     vectorStore,
		Downloader:    downloader,
		Processor:     processor,
		Logger:        logger,
		TopK:          cfg.Retrieval.TopK,
	}

	rt := runtime.New(metricsCollector, logger)
	bridge := stream.NewBridge(rt, metricsCollector, logger, cfg.Stream.Buffer)
	classifier := orchestrator.NewClassifier(llmClient, logger)
	manager := orchestrator.NewManager(classifier, bridge, deps, logger)

	// API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: manager,
		Logger:       logger,
	})

	wsHandler := websocket.NewHandler(manager, logger)
	httpServer.SetupWebSocket(wsHandler)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("polichat started", zap.Int("http_port", cfg.HTTPPort))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	processor.Release()
	vectorStore.Close()

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("polichat shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
