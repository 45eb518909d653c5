// Package api exposes runs and detail lookups over HTTP.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/savings/api/handler"
	"github.com/use-agent/savings/api/middleware"
	"github.com/use-agent/savings/cache"
	"github.com/use-agent/savings/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(runs *handler.RunStore, f handler.PairFetcher, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(runs, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/runs", handler.PostRun(runs))
	protected.GET("/runs/:id", handler.GetRun(runs))
	protected.POST("/detail", handler.Detail(f, cc))

	return r
}
