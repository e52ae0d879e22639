package router

import (
	"expvar"
	"time"

	appuser "github.com/oksasatya/go-ddd-account-service/internal/application"
	"github.com/oksasatya/go-ddd-account-service/internal/container"
	rabbitinfra "github.com/oksasatya/go-ddd-account-service/internal/infrastructure/rabbitmq"
	handlers "github.com/oksasatya/go-ddd-account-service/internal/interface/http"
	"github.com/oksasatya/go-ddd-account-service/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-account-service/internal/router/modules"
)

type UserModuleDeps struct {
	Service *appuser.Service
	Handler *handlers.UserHandler
}

var dispatchStats = expvar.NewMap("confirmation_dispatch")

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	service := appuser.NewService(
		container.GetUserRepository(),
		container.GetMailer(),
		logger,
		cfg.BaseURL,
		cfg.Brand(),
	)

	if pub := container.GetRabbitPub(); pub != nil {
		service.Dispatcher = rabbitinfra.NewConfirmationPublisher(pub, logger, 5*time.Second)
	} else {
		d := appuser.NewAsyncDispatcher(service, logger, appuser.AsyncOptions{
			Workers:    cfg.DispatchWorkers,
			QueueSize:  cfg.DispatchQueueSize,
			JobTimeout: cfg.DispatchJobTimeout,
		})
		service.Dispatcher = d
		dispatchStats.Set("async", expvar.Func(func() any { return d.Stats() }))
		container.OnShutdown(d.Close)
	}

	handler := handlers.NewUserHandler(service, logger, cfg.BaseURL)

	return UserModuleDeps{
		Service: service,
		Handler: handler,
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) UserModuleDeps {
	cfg := container.GetConfig()
	userDeps := buildUserDeps()

	var allow middleware.AllowFunc
	if cfg.RateLimitBypassPrivate {
		allow = middleware.AllowPrivateIP()
	}
	r.Add(modules.NewUserModule(userDeps.Handler, container.GetRedis(), modules.RateLimits{
		SignupsPerMinute: cfg.RateLimitSignupsPerMinute,
		ResendsPerHour:   cfg.RateLimitResendsPerHour,
		Allow:            allow,
	}))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(container.GetRedis()))
	}
	return userDeps
}
