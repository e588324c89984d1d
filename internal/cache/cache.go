package cache

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the optional key/value collaborator. Implementations must be
// safe to fail: callers treat any error as a miss.
type Cache interface {
	Get(key string, value any) error
	Set(key string, value any, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// Entry wraps a cached payload with expiry metadata.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e *Entry) IsExpired() bool {
	if e.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*e.ExpiresAt)
}

// Noop satisfies Cache and never stores anything, so the cache collaborator
// stays optional without nil checks at call sites.
type Noop struct{}

func (Noop) Get(string, any) error                { return ErrCacheMiss }
func (Noop) Set(string, any, time.Duration) error { return nil }
func (Noop) Delete(string) error                  { return nil }
func (Noop) Close() error                         { return nil }
