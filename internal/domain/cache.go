package domain

import (
	"context"
	"time"
)

// Cache keeps hot policy lookups close to claim intake and holds the
// round-robin assignment cursors. The memory cache serves one node; the Redis
// and two-phase caches share both across nodes.
type Cache interface {
	// GetPolicy returns the cached policy for a number, ignoring case.
	// A miss returns nil, nil.
	GetPolicy(ctx context.Context, policyNumber string) (*Policy, error)
	SetPolicy(ctx context.Context, p *Policy, ttl time.Duration) error
	InvalidatePolicy(ctx context.Context, policyNumber string) error

	// NextCursor advances the named cursor and returns its new value, starting at 1.
	// A cursor left unused for longer than idle starts over.
	NextCursor(ctx context.Context, name string, idle time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig selects and sizes the cache.
type CacheConfig struct {
	Type string `toml:"type"` // "memory" or "redis"

	// LocalMaxSize bounds the policies held in process. LocalTTL caps how long
	// the local layer of a two-phase cache may serve a policy.
	LocalMaxSize int           `toml:"local_max_size" split_words:"true"`
	LocalTTL     time.Duration `toml:"local_ttl" split_words:"true"`

	RedisAddr     string `toml:"redis_addr" split_words:"true"`
	RedisPassword string `toml:"redis_password" split_words:"true"`
	RedisDB       int    `toml:"redis_db" envconfig:"REDIS_DB"`

	// EnableTwoPhase puts an in-process LRU in front of Redis.
	EnableTwoPhase bool `toml:"enable_two_phase" split_words:"true"`
}
