/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/metrics"
	"github.com/rs/zerolog"
)

// MetricsRepository is the persistence slice the service consumes.
type MetricsRepository interface {
	SaveMetric(ctx context.Context, m domain.Metric) error
}

// Service turns fetched iteration data into persisted metric aggregates.
type Service struct {
	provider IterationDataProvider
	repo     MetricsRepository
	log      zerolog.Logger
}

func NewService(provider IterationDataProvider, repo MetricsRepository, log zerolog.Logger) *Service {
	return &Service{provider: provider, repo: repo, log: log}
}

func (s *Service) CalculateMetrics(ctx context.Context, iterationID string) (domain.Metric, error) {
	data, err := s.provider.FetchIterationData(ctx, iterationID)
	if err != nil {
		return domain.Metric{}, err
	}
	m := buildMetric(data)
	if err := s.repo.SaveMetric(ctx, m); err != nil {
		return domain.Metric{}, fmt.Errorf("save metric for iteration %s: %w", iterationID, err)
	}
	s.log.Info().
		Str("iteration", m.IterationID).
		Float64("velocity_points", m.Velocity.Points).
		Int("throughput", m.Throughput).
		Float64("mttr_hours", m.MTTR.AvgHours).
		Msg("metrics calculated")
	return m, nil
}

// CalculateMultipleMetrics fetches concurrently through the provider but
// persists strictly in input order, one at a time. The first persistence
// failure stops the run.
func (s *Service) CalculateMultipleMetrics(ctx context.Context, iterationIDs []string) ([]domain.Metric, error) {
	if len(iterationIDs) == 0 {
		return nil, ErrNoIterations
	}
	dataset, err := s.provider.FetchMultipleIterations(ctx, iterationIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Metric, 0, len(dataset))
	for i, data := range dataset {
		m := buildMetric(data)
		if err := s.repo.SaveMetric(ctx, m); err != nil {
			return nil, fmt.Errorf("save metric for iteration %s: %w", iterationIDs[i], err)
		}
		out = append(out, m)
	}
	s.log.Info().Int("iterations", len(out)).Msg("batch metrics calculated")
	return out, nil
}

func buildMetric(data domain.IterationData) domain.Metric {
	iter := data.Iteration
	deploy := metrics.DeployFrequency(data.MergeRequests, iter.StartDate, iter.DueDate)
	now := time.Now()
	return domain.Metric{
		IterationID:   iter.ID,
		Title:         iter.Title,
		StartDate:     iter.StartDate,
		DueDate:       iter.DueDate,
		Velocity:      metrics.Velocity(data.Issues),
		Throughput:    metrics.Throughput(data.Issues),
		CycleTime:     metrics.CycleTime(data.Issues),
		LeadTime:      metrics.LeadTime(data.MergeRequests),
		DeployFreq:    deploy,
		MTTR:          metrics.MeanTimeToRecovery(data.Incidents),
		CFR:           metrics.ChangeFailureRate(data.Incidents, deploy.Deployments, iter.StartDate, endOfDay(iter.DueDate)),
		IssueCount:    len(data.Issues),
		MergeCount:    len(data.MergeRequests),
		IncidentCount: len(data.Incidents),
		Raw:           data,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
