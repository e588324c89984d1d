package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/cache"
	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
	"github.com/rs/zerolog"
)

type memCache struct {
	store   map[string][]byte
	getErr  error
	setErr  error
	gets    int
	sets    int
	deletes int
}

func newMemCache() *memCache { return &memCache{store: map[string][]byte{}} }

func (m *memCache) Get(key string, value any) error {
	m.gets++
	if m.getErr != nil {
		return m.getErr
	}
	data, ok := m.store[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, value)
}

func (m *memCache) Set(key string, value any, ttl time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = data
	return nil
}

func (m *memCache) Delete(key string) error { m.deletes++; delete(m.store, key); return nil }
func (m *memCache) Close() error            { return nil }

type countingProvider struct {
	fakeProvider
	fetches int
	batches int
}

func (c *countingProvider) FetchIterationData(ctx context.Context, iterationID string) (domain.IterationData, error) {
	c.fetches++
	return c.fakeProvider.FetchIterationData(ctx, iterationID)
}

func (c *countingProvider) FetchMultipleIterations(ctx context.Context, iterationIDs []string) ([]domain.IterationData, error) {
	c.batches++
	return c.fakeProvider.FetchMultipleIterations(ctx, iterationIDs)
}

func TestCachedProviderMissThenHit(t *testing.T) {
	inner := &countingProvider{fakeProvider: fakeProvider{data: map[string]domain.IterationData{"10": sprintData("10")}}}
	mc := newMemCache()
	p := NewCachedProvider(inner, mc, time.Hour, zerolog.Nop())

	first, err := p.FetchIterationData(context.Background(), "10")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if inner.fetches != 1 {
		t.Fatalf("inner fetched %d times, want 1", inner.fetches)
	}

	second, err := p.FetchIterationData(context.Background(), "10")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if inner.fetches != 1 {
		t.Errorf("inner fetched %d times after warm cache, want 1", inner.fetches)
	}
	if second.Iteration.ID != first.Iteration.ID {
		t.Errorf("cached iteration %q, want %q", second.Iteration.ID, first.Iteration.ID)
	}
}

func TestCachedProviderReadErrorFallsThrough(t *testing.T) {
	inner := &countingProvider{fakeProvider: fakeProvider{data: map[string]domain.IterationData{"10": sprintData("10")}}}
	mc := newMemCache()
	mc.getErr = errors.New("disk on fire")
	p := NewCachedProvider(inner, mc, time.Hour, zerolog.Nop())

	data, err := p.FetchIterationData(context.Background(), "10")
	if err != nil {
		t.Fatalf("cache read error must not abort the fetch: %v", err)
	}
	if data.Iteration.ID != "10" {
		t.Errorf("got iteration %q, want the live fetch", data.Iteration.ID)
	}
	if inner.fetches != 1 {
		t.Errorf("inner fetched %d times, want 1", inner.fetches)
	}
}

func TestCachedProviderWriteErrorIgnored(t *testing.T) {
	inner := &countingProvider{fakeProvider: fakeProvider{data: map[string]domain.IterationData{"10": sprintData("10")}}}
	mc := newMemCache()
	mc.setErr = errors.New("disk full")
	p := NewCachedProvider(inner, mc, time.Hour, zerolog.Nop())

	if _, err := p.FetchIterationData(context.Background(), "10"); err != nil {
		t.Fatalf("cache write error must not abort the fetch: %v", err)
	}
}

func TestCachedProviderBatchWarmsCache(t *testing.T) {
	inner := &countingProvider{fakeProvider: fakeProvider{data: map[string]domain.IterationData{
		"10": sprintData("10"),
		"11": sprintData("11"),
	}}}
	mc := newMemCache()
	p := NewCachedProvider(inner, mc, time.Hour, zerolog.Nop())

	results, err := p.FetchMultipleIterations(context.Background(), []string{"10", "11"})
	if err != nil {
		t.Fatalf("batch fetch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if inner.batches != 1 {
		t.Errorf("inner batch called %d times, want 1", inner.batches)
	}

	// Subsequent single fetches come from the warmed cache.
	if _, err := p.FetchIterationData(context.Background(), "11"); err != nil {
		t.Fatalf("warm fetch: %v", err)
	}
	if inner.fetches != 0 {
		t.Errorf("inner single fetch called %d times after batch warm, want 0", inner.fetches)
	}
}

func TestCachedProviderBatchEmpty(t *testing.T) {
	p := NewCachedProvider(&countingProvider{}, newMemCache(), time.Hour, zerolog.Nop())
	if _, err := p.FetchMultipleIterations(context.Background(), nil); !errors.Is(err, ErrNoIterations) {
		t.Fatalf("got %v, want ErrNoIterations", err)
	}
}
