package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/alarming"
	"github.com/smukkama/matricare/internal/database"
	"github.com/smukkama/matricare/internal/directory"
	"github.com/smukkama/matricare/internal/logger"
	"github.com/smukkama/matricare/internal/poller"
	"github.com/smukkama/matricare/internal/queue"
	"github.com/smukkama/matricare/internal/server"
	"github.com/smukkama/matricare/internal/session"
	"github.com/smukkama/matricare/internal/subscription"
	"github.com/smukkama/matricare/internal/token"
	"github.com/smukkama/matricare/internal/vitals"
	"github.com/smukkama/matricare/pkg/config"
)

const (
	maxSubscriptions = 1000
	statsInterval    = 30 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "matricare-dashboard")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting MatriCare dashboard")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("Connected to database")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	zapLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	if cfg.Kafka.CreateTopicsOnUp {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicUserEvents, cfg.Kafka.NumPartitions, 1); err != nil {
			zapLogger.Warn("Topic creation failed", zap.String("topic", cfg.Kafka.TopicUserEvents), zap.Error(err))
		}
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicUserEvents)
	defer producer.Close()

	registry := subscription.NewRegistry(maxSubscriptions)
	dir := directory.New(db, redisClient, producer, registry, zapLogger)

	evaluator := alarming.NewEvaluator(
		alarming.DefaultThresholds(),
		alarming.NewStateManager(redisClient),
		db,
		zapLogger,
	)

	vitalsClient := vitals.NewClient(cfg.Vitals.URL, cfg.Vitals.Timeout, zapLogger)

	driver := poller.New(vitalsClient, dir, evaluator, cfg.Vitals.PollInterval, zapLogger)
	if err := driver.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start polling", zap.Error(err))
	}
	defer driver.Stop()
	zapLogger.Info("Polling started",
		zap.String("vitals_url", cfg.Vitals.URL),
		zap.Duration("interval", cfg.Vitals.PollInterval),
	)

	signer, err := token.NewSigner(cfg.Session.Secret)
	if err != nil {
		zapLogger.Fatal("Failed to create token signer", zap.Error(err))
	}

	srv := server.New(&cfg.HTTP, server.Deps{
		Directory:  dir,
		State:      driver,
		Sessions:   session.NewStore(redisClient, cfg.Session.TTL),
		Tokens:     signer,
		Registry:   registry,
		SessionTTL: cfg.Session.TTL,
		Logger:     zapLogger,
	})
	if err := srv.Start(); err != nil {
		zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
	}

	go logStats(ctx, zapLogger, driver, registry, cfg.Vitals.PollInterval)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}

// logStats reports driver and subscription counters. A subscription with no
// delivery for many poll intervals is reported as possibly leaked.
func logStats(ctx context.Context, zapLogger *zap.Logger, driver *poller.Driver, registry *subscription.Registry, pollInterval time.Duration) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ps := driver.Stats()
			rs := registry.Stats()
			zapLogger.Info("Dashboard statistics",
				zap.Uint64("cycles", ps.Cycles),
				zap.Uint64("failures", ps.Failures),
				zap.Uint64("skipped", ps.Skipped),
				zap.Bool("connected", driver.State().Connected),
				zap.Int("open_subscriptions", rs.OpenSubscriptions),
				zap.Int("watched_patients", rs.WatchedPatients),
			)
			if idle := registry.Idle(100 * pollInterval); len(idle) > 0 {
				zapLogger.Warn("Idle subscriptions", zap.Strings("subscription_ids", idle))
			}
		}
	}
}
