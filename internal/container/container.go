package container

import (
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-account-service/config"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/mailer"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	"github.com/oksasatya/go-ddd-account-service/pkg/helpers"
)

// app-level container to share constructed components across packages
// Router auto-wires modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	userRepo    repository.UserRepository
	mail        mailer.Mailer
	redisClient *redis.Client
	rabbitPub   *helpers.RabbitPublisher

	mu       sync.Mutex
	shutdown []func()
)

func SetConfig(c *config.Config) { cfg = c }
func GetConfig() *config.Config {
	if cfg == nil {
		cfg = config.Load()
	}
	return cfg
}
func SetLogger(l *logrus.Logger) { logger = l }
func GetLogger() *logrus.Logger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}
func SetUserRepository(r repository.UserRepository) { userRepo = r }
func GetUserRepository() repository.UserRepository  { return userRepo }
func SetMailer(m mailer.Mailer)                      { mail = m }
func GetMailer() mailer.Mailer                       { return mail }

// SetRedis sets the optional Redis client. Nil disables rate limiting.
func SetRedis(r *redis.Client) { redisClient = r }
func GetRedis() *redis.Client  { return redisClient }

// SetRabbitPub sets the optional broker publisher. When set, confirmation
// jobs go to the broker instead of the in-process worker pool.
func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }
func GetRabbitPub() *helpers.RabbitPublisher  { return rabbitPub }

// OnShutdown registers fn to run on Shutdown. Functions run in reverse order.
func OnShutdown(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	shutdown = append(shutdown, fn)
}

func Shutdown() {
	mu.Lock()
	fns := shutdown
	shutdown = nil
	mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// Reset clears every singleton. Tests use it between cases.
func Reset() {
	Shutdown()
	cfg, logger, userRepo, mail, redisClient, rabbitPub = nil, nil, nil, nil, nil, nil
}
