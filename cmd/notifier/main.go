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

	"github.com/smukkama/matricare/internal/invite"
	"github.com/smukkama/matricare/internal/logger"
	"github.com/smukkama/matricare/internal/queue"
	"github.com/smukkama/matricare/internal/token"
	"github.com/smukkama/matricare/pkg/config"
)

const (
	retryBackoff    = 2 * time.Second
	maxRetryBackoff = time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "matricare-notifier")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting family invitation notifier")

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

	sender := invite.NewEmailSender(&cfg.SMTP, zapLogger)
	if !sender.Configured() {
		zapLogger.Warn("SMTP not configured, invitations are held until it is")
	} else if err := sender.TestConnection(); err != nil {
		zapLogger.Warn("SMTP connection test failed", zap.Error(err))
	}

	signer, err := token.NewSigner(cfg.Invite.Secret)
	if err != nil {
		zapLogger.Fatal("Failed to create token signer", zap.Error(err))
	}

	processor := invite.NewProcessor(
		signer,
		invite.NewLedger(redisClient, cfg.Invite.TokenTTL),
		sender,
		cfg.Invite.BaseURL,
		cfg.Invite.TokenTTL,
		zapLogger,
	)

	if cfg.Kafka.CreateTopicsOnUp {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicUserEvents, cfg.Kafka.NumPartitions, 1); err != nil {
			zapLogger.Warn("Topic creation failed", zap.String("topic", cfg.Kafka.TopicUserEvents), zap.Error(err))
		}
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicUserEvents, cfg.Kafka.NotifierGroupID)
	defer consumer.Close()

	runner := queue.NewRunner(consumer, processor.HandleMessage, retryBackoff, maxRetryBackoff, zapLogger)
	runner.Start(ctx)
	defer runner.Stop()

	zapLogger.Info("Notifier is running",
		zap.String("topic", cfg.Kafka.TopicUserEvents),
		zap.String("group_id", cfg.Kafka.NotifierGroupID),
	)

	// Print statistics periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := consumer.Stats()
				zapLogger.Info("Consumer statistics",
					zap.Int64("messages", stats.Messages),
					zap.Int64("errors", stats.Errors),
					zap.Int64("lag", stats.Lag),
				)
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down gracefully")
}
