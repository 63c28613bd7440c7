package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"testsmith.app/testsmith/common/id"
	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/common/logger"
	"testsmith.app/testsmith/common/otel"
	"testsmith.app/testsmith/core/config"
	"testsmith.app/testsmith/core/db"
	"testsmith.app/testsmith/internal/generator"
	"testsmith.app/testsmith/internal/queue"
	"testsmith.app/testsmith/internal/source"
	"testsmith.app/testsmith/internal/store"
	"testsmith.app/testsmith/internal/worker"
)

const maxAttempts = 3

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "testsmith worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.Group,
		"consumer_name", cfg.Queue.Consumer)

	// Different node ID than the server so snowflakes never collide
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
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
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.Stream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Queue.Stream,
		Group:        cfg.Queue.Group,
		Consumer:     cfg.Queue.Consumer,
		DLQStream:    cfg.Queue.DLQStream,
		BatchSize:    1, // one run at a time, generations are long
		Block:        5 * time.Second,
		MaxAttempts:  maxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	chat, err := llm.NewChatClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	var structured llm.StructuredClient
	if cfg.LLM.Provider == llm.ProviderOpenAI {
		structured, err = llm.NewStructuredClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			slog.WarnContext(ctx, "structured client unavailable, plan steps disabled", "error", err)
		}
	}

	resolver, err := source.New(cfg.GitLab.Token, cfg.GitLab.BaseURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create source resolver", "error", err)
		os.Exit(1)
	}

	gen := &generator.Generator{
		Chat:        chat,
		Structured:  structured,
		Resolver:    resolver,
		ExamplesDir: cfg.Generation.ExamplesDir,
		OutputDir:   cfg.Generation.OutputDir,
		MaxTokens:   cfg.LLM.MaxTokens,
	}

	runs := store.NewRunStore(database)
	processor := worker.NewProcessor(runs, gen, redisClient, worker.ProcessorConfig{
		MaxAttempts:  maxAttempts,
		OutputPrefix: cfg.Queue.OutputPrefix,
	})

	w := worker.New(consumer, processor, worker.Config{MaxAttempts: maxAttempts})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Queue.Stream,
		Group:     cfg.Queue.Group,
		Consumer:  cfg.Queue.Consumer,
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, processor.Process)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go reclaimer.Run(runCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.InfoContext(ctx, "shutting down...")
		cancel()
		w.Stop()
		reclaimer.Stop()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			slog.ErrorContext(ctx, "worker exited with error", "error", err)
		}
		cancel()
		reclaimer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	fmt.Println("worker stopped")
}
