package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oksasatya/go-ddd-account-service/config"
	"github.com/oksasatya/go-ddd-account-service/internal/application"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	pginfra "github.com/oksasatya/go-ddd-account-service/internal/infrastructure/postgres"
	rabbitinfra "github.com/oksasatya/go-ddd-account-service/internal/infrastructure/rabbitmq"
	"github.com/oksasatya/go-ddd-account-service/internal/infrastructure/redisstore"
	sqliteinfra "github.com/oksasatya/go-ddd-account-service/internal/infrastructure/sqlite"
	"github.com/oksasatya/go-ddd-account-service/pkg/helpers"
)

// email_worker consumes confirmation jobs published by the API when
// CONFIRMATION_DISPATCH=rabbitmq and sends the emails.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQConfirmationQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := openRepository(ctx, cfg)
	defer closeRepo()

	m, err := cfg.NewMailer(logger)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}
	svc := application.NewService(repo, m, logger, cfg.BaseURL, cfg.Brand())

	consumer := &rabbitinfra.ConfirmationConsumer{
		Proc:       svc,
		Logger:     logger,
		JobTimeout: cfg.DispatchJobTimeout,
	}
	if cfg.RedisAddr != "" {
		rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = rdb.Close() }()
		if err := helpers.PingRedis(ctx, rdb); err != nil {
			logger.WithError(err).Warn("redis unavailable; duplicate deliveries will not be detected")
		} else {
			consumer.Guard = redisstore.NewJobGuard(rdb, 24*time.Hour)
		}
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	// prefetch for fair dispatch across workers
	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}
	if err := helpers.DeclareQueue(ch, cfg.RabbitMQConfirmationQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQConfirmationQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	logger.WithField("queue", cfg.RabbitMQConfirmationQueue).Info("email worker started")
	consumer.Consume(ctx, msgs)
	logger.Info("email worker stopped")
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.UserRepository, func()) {
	switch cfg.DBDriver {
	case "postgres":
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		db := pginfra.OpenDB(pool)
		return pginfra.NewUserRepository(db), func() { _ = db.Close(); pool.Close() }
	case "sqlite":
		db, err := sqliteinfra.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		return sqliteinfra.NewUserRepository(db), func() { _ = db.Close() }
	}
	// the in-memory store is per-process, so the worker cannot see the API's users
	log.Fatalf("DB_DRIVER %q cannot be shared with the API process", cfg.DBDriver)
	return nil, nil
}
