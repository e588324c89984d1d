/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/repo"
)

type calculator interface {
	CalculateMetrics(ctx context.Context, iterationID string) (domain.Metric, error)
	CalculateMultipleMetrics(ctx context.Context, iterationIDs []string) ([]domain.Metric, error)
}

type metricsStore interface {
	GetMetric(ctx context.Context, iterationID string) (domain.Metric, error)
	ListMetrics(ctx context.Context) ([]domain.Metric, error)
}

type Handlers struct {
	cfg   config.Config
	log   zerolog.Logger
	calc  calculator
	store metricsStore
}

func NewHandlers(cfg config.Config, log zerolog.Logger, calc calculator, store metricsStore) *Handlers {
	return &Handlers{cfg: cfg, log: log, calc: calc, store: store}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) ListMetrics(c *gin.Context) {
	out, err := h.store.ListMetrics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) GetMetric(c *gin.Context) {
	id := c.Param("iterationID")
	m, err := h.store.GetMetric(c.Request.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metrics for iteration " + id})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

// RunNow recomputes the configured iterations detached from the request so a
// slow fetch does not get cut off by request context cancellation.
func (h *Handlers) RunNow(c *gin.Context) {
	ids := h.cfg.IterationIDs
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no iterations configured"})
		return
	}
	go func() {
		if _, err := h.calc.CalculateMultipleMetrics(context.Background(), ids); err != nil {
			h.log.Error().Err(err).Msg("on-demand run failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "iterations": ids})
}

// RunIteration recomputes a single iteration synchronously and returns the
// fresh aggregate.
func (h *Handlers) RunIteration(c *gin.Context) {
	id := c.Param("iterationID")
	m, err := h.calc.CalculateMetrics(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}
