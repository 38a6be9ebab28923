// Package http exposes the operations surface: health and status endpoints
// beside the bot itself.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"parley.app/bot/internal/relay"
)

type RouterConfig struct {
	ServiceName string
	OTelEnabled bool
	Model       string
}

// NewRouter builds the gin engine for the health server.
func NewRouter(orch *relay.Orchestrator, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	if cfg.OTelEnabled {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(gin.Recovery())

	started := time.Now()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		stats := orch.Stats()
		c.JSON(200, gin.H{
			"uptime_seconds": int64(time.Since(started).Seconds()),
			"model":          cfg.Model,
			"events": gin.H{
				"handled": stats.Handled,
				"ignored": stats.Ignored,
				"failed":  stats.Failed,
			},
		})
	})

	return router
}
