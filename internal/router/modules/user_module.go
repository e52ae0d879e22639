package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-ddd-account-service/internal/interface/http"
	"github.com/oksasatya/go-ddd-account-service/internal/interface/middleware"
)

// UserModule wires account and email confirmation routes under /api/v1:
//
//	POST /users                         create account
//	GET  /users/:id                     read account
//	POST /users/:id/email/confirmation  (re)send confirmation email
//	GET  /users/:id/email/confirmation  confirm with ?token=
//	POST /users/:id/email/change        request a new address
//	GET  /uptime
type UserModule struct {
	Handler *handlers.UserHandler
	Redis   *redis.Client
	Limits  RateLimits
}

// RateLimits caps sign-ups per client IP and confirmation sends per account.
// Zero disables a limit.
type RateLimits struct {
	SignupsPerMinute int
	ResendsPerHour   int
	Allow            middleware.AllowFunc
}

func NewUserModule(h *handlers.UserHandler, rdb *redis.Client, limits RateLimits) *UserModule {
	return &UserModule{Handler: h, Redis: rdb, Limits: limits}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	signupLimiter := middleware.RateLimit(m.Redis, m.Limits.SignupsPerMinute, time.Minute, middleware.KeyByIP(), m.Limits.Allow)
	sendLimiter := middleware.RateLimit(m.Redis, m.Limits.ResendsPerHour, time.Hour, middleware.KeyByParam("id"), m.Limits.Allow)

	v1 := rg.Group("/v1")
	v1.POST("/users", signupLimiter, m.Handler.CreateUser)
	v1.GET("/users/:id", m.Handler.GetUser)
	v1.POST("/users/:id/email/confirmation", sendLimiter, m.Handler.SendConfirmation)
	v1.GET("/users/:id/email/confirmation", m.Handler.ConfirmEmail)
	v1.POST("/users/:id/email/change", sendLimiter, m.Handler.ChangeEmail)
	v1.GET("/uptime", m.Handler.Uptime)
}
