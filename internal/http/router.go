/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, calc calculator, store metricsStore) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, calc, store)

	r.GET("/healthz", h.Healthz)
	r.GET("/api/metrics", h.ListMetrics)
	r.GET("/api/metrics/:iterationID", h.GetMetric)
	r.POST("/admin/run", h.RunNow)
	r.POST("/admin/run/:iterationID", h.RunIteration)

	return r
}
