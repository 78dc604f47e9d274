package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/config"
	"epistolary-lite/internal/fetch"
	"epistolary-lite/internal/handler"
	"epistolary-lite/internal/logger"
	"epistolary-lite/internal/middleware"
	"epistolary-lite/internal/model"
	"epistolary-lite/internal/sentry"
	"epistolary-lite/internal/store"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Config      config.Config
	Fetcher     fetch.Fetcher
	Updates     *handler.Publisher
	Started     time.Time
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}
	if deps.Updates == nil {
		deps.Updates = handler.NewPublisher()
	}

	r := gin.New()
	r.Use(logger.GinLogger("epistolary"))
	r.Use(gin.Recovery())
	if deps.Config.Sentry.UseSentry() {
		r.Use(sentry.Middleware(map[string]string{"service": "epistolary"}))
	}
	r.Use(logger.RequestID())
	r.Use(middleware.Maintenance(deps.Config.Maintenance, deps.Started))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.Reply{Error: "resource not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, model.Reply{Error: "method not allowed"})
	})

	authHandler := &handler.AuthHandler{
		Store:         deps.Store,
		TokenConfig:   deps.TokenConfig,
		CookieDomain:  deps.Config.CookieDomain,
		SecureCookies: deps.Config.TLSCertFile != "" && deps.Config.TLSKeyFile != "",
	}
	statusHandler := &handler.StatusHandler{Started: deps.Started}

	limit := deps.Config.LoginRateLimit
	if limit <= 0 {
		limit = 10
	}
	loginLimiter := middleware.NewRateLimiter(limit, time.Minute)

	v1 := r.Group("/v1")
	v1.GET("/status", statusHandler.Status)
	v1.POST("/register", authHandler.Register)
	v1.POST("/login", middleware.RateLimit(loginLimiter), authHandler.Login)
	v1.POST("/logout", authHandler.Logout)

	readingHandler := &handler.ReadingHandler{Store: deps.Store, Fetcher: deps.Fetcher, Updates: deps.Updates}
	updatesHandler := &handler.UpdatesHandler{Updates: deps.Updates}

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))
	protected.GET("/reading", readingHandler.List)
	protected.POST("/reading", readingHandler.Create)
	protected.GET("/reading/:readingID", readingHandler.Fetch)
	protected.PUT("/reading/:readingID", readingHandler.Update)
	protected.PATCH("/reading/:readingID", readingHandler.Update)
	protected.GET("/updates", updatesHandler.Serve)

	return r
}
