/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
	"github.com/rs/zerolog"
)

// GitLabClient is the slice of the adapter the provider consumes.
type GitLabClient interface {
	FetchIterations(ctx context.Context) ([]domain.Iteration, error)
	FetchIterationIssues(ctx context.Context, iterationID string) ([]domain.Issue, error)
	FetchMergedMergeRequests(ctx context.Context, start, end time.Time) ([]domain.MergeRequest, error)
	FetchIncidents(ctx context.Context, start, end time.Time) ([]domain.Incident, error)
	FetchGroupProjects(ctx context.Context) ([]domain.Project, error)
}

// IterationDataProvider is the boundary contract the route layer and the
// metrics service consume.
type IterationDataProvider interface {
	FetchIterationData(ctx context.Context, iterationID string) (domain.IterationData, error)
	FetchMultipleIterations(ctx context.Context, iterationIDs []string) ([]domain.IterationData, error)
}

var ErrNoIterations = errors.New("iteration ids must be a non-empty list")

type Provider struct {
	cfg config.Config
	log zerolog.Logger
	gl  GitLabClient
}

func NewProvider(cfg config.Config, log zerolog.Logger, gl GitLabClient) *Provider {
	return &Provider{cfg: cfg, log: log, gl: gl}
}

func (p *Provider) FetchIterationData(ctx context.Context, iterationID string) (domain.IterationData, error) {
	index, err := p.iterationIndex(ctx)
	if err != nil {
		return domain.IterationData{}, err
	}
	return p.fetchOne(ctx, index, iterationID)
}

// FetchMultipleIterations resolves the group's iteration list once into an
// explicit per-call index, then fetches each iteration's detail in its own
// goroutine. Results come back in input order; the first failure is
// reported with the iteration it belongs to.
func (p *Provider) FetchMultipleIterations(ctx context.Context, iterationIDs []string) ([]domain.IterationData, error) {
	if len(iterationIDs) == 0 {
		return nil, ErrNoIterations
	}
	index, err := p.iterationIndex(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.IterationData, len(iterationIDs))
	errs := make([]error, len(iterationIDs))
	var wg sync.WaitGroup
	for i, id := range iterationIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = p.fetchOne(ctx, index, id)
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("iteration %s: %w", iterationIDs[i], err)
		}
	}
	return results, nil
}

// iterationIndex is the memoization scope for one provider call: the full
// iteration list fetched once, keyed by id. Deliberately not cached at
// module level so concurrent batches never share hidden state.
func (p *Provider) iterationIndex(ctx context.Context) (map[string]domain.Iteration, error) {
	iters, err := p.gl.FetchIterations(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]domain.Iteration, len(iters))
	for _, it := range iters {
		index[it.ID] = it
	}
	return index, nil
}

func lookupIteration(index map[string]domain.Iteration, id string) (domain.Iteration, bool) {
	if it, ok := index[id]; ok {
		return it, true
	}
	// Accept a bare numeric id against the backend's global id form.
	for gid, it := range index {
		if strings.HasSuffix(gid, "/"+id) {
			return it, true
		}
	}
	return domain.Iteration{}, false
}

func (p *Provider) fetchOne(ctx context.Context, index map[string]domain.Iteration, iterationID string) (domain.IterationData, error) {
	iter, ok := lookupIteration(index, iterationID)
	if !ok {
		return domain.IterationData{}, fmt.Errorf("iteration %s not found in group %s", iterationID, p.cfg.GitLabGroupPath)
	}

	issues, err := p.gl.FetchIterationIssues(ctx, iter.ID)
	if err != nil {
		return domain.IterationData{}, err
	}
	mrs, err := p.gl.FetchMergedMergeRequests(ctx, iter.StartDate, endOfDay(iter.DueDate))
	if err != nil {
		return domain.IterationData{}, err
	}
	incidents, err := p.gl.FetchIncidents(ctx, iter.StartDate, endOfDay(iter.DueDate))
	if err != nil {
		return domain.IterationData{}, err
	}
	projects, err := p.gl.FetchGroupProjects(ctx)
	if err != nil {
		return domain.IterationData{}, err
	}

	p.log.Debug().
		Str("iteration", iter.ID).
		Int("issues", len(issues)).
		Int("merge_requests", len(mrs)).
		Int("incidents", len(incidents)).
		Int("projects", len(projects)).
		Msg("iteration data fetched")

	return domain.IterationData{
		Iteration:     iter,
		Issues:        issues,
		MergeRequests: mrs,
		Incidents:     incidents,
		Projects:      projects,
	}, nil
}

// endOfDay widens a date-only due date to the end of that day so records
// from the final iteration day are not cut off.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
