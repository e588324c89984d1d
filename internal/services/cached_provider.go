package services

import (
	"context"
	"errors"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/cache"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
	"github.com/rs/zerolog"
)

// CachedProvider decorates an IterationDataProvider with the optional cache
// collaborator. Any cache failure is logged and treated as a miss; the live
// fetch always stands behind it.
type CachedProvider struct {
	inner IterationDataProvider
	cache cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedProvider(inner IterationDataProvider, c cache.Cache, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c, ttl: ttl, log: log}
}

func cacheKey(iterationID string) string { return "iteration_data:" + iterationID }

func (c *CachedProvider) FetchIterationData(ctx context.Context, iterationID string) (domain.IterationData, error) {
	var cached domain.IterationData
	err := c.cache.Get(cacheKey(iterationID), &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn().Err(err).Str("iteration", iterationID).Msg("cache read failed, fetching live")
	}

	data, err := c.inner.FetchIterationData(ctx, iterationID)
	if err != nil {
		return domain.IterationData{}, err
	}
	if err := c.cache.Set(cacheKey(iterationID), data, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("iteration", iterationID).Msg("cache write failed")
	}
	return data, nil
}

func (c *CachedProvider) FetchMultipleIterations(ctx context.Context, iterationIDs []string) ([]domain.IterationData, error) {
	if len(iterationIDs) == 0 {
		return nil, ErrNoIterations
	}
	results, err := c.inner.FetchMultipleIterations(ctx, iterationIDs)
	if err != nil {
		return nil, err
	}
	for i, data := range results {
		if err := c.cache.Set(cacheKey(iterationIDs[i]), data, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("iteration", iterationIDs[i]).Msg("cache write failed")
		}
	}
	return results, nil
}
