// Package server assembles the gin engine and HTTP lifecycle.
package server

import (
	"net/http"

	"github.com/devtrack-app/devtrack/internal/config"
	"github.com/devtrack-app/devtrack/internal/handler"
	ratelimit "github.com/devtrack-app/devtrack/internal/middleware"
	"github.com/devtrack-app/devtrack/internal/server/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	OAuth   *handler.OAuthHandler
	Service *handler.ServiceHandler
}

// NewRouter builds the engine with the standard middleware chain and all
// API routes.
func NewRouter(cfg *config.Config, h Handlers, limiter *ratelimit.RateLimiter, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	if cfg.RateLimit.Enabled && limiter != nil {
		api.Use(limiter.Limit("api", cfg.RateLimit.Max, cfg.RateLimit.Window))
	}

	oauth := api.Group("/oauth")
	{
		oauth.GET("/:provider/initiate", h.OAuth.Initiate)
		oauth.GET("/:provider/callback", h.OAuth.Callback)
	}

	services := api.Group("/services")
	{
		services.GET("/projects", h.Service.Projects)
		services.POST("/connect", h.Service.Connect)
		services.POST("/sync", h.Service.Sync)
		services.POST("/data", h.Service.Data)
		services.POST("/disconnect", h.Service.Disconnect)
	}

	return r
}
