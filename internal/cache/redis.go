package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	policyPrefix = "heron:policy:"
	cursorPrefix = "heron:cursor:"
)

// RedisCache shares policies and assignment cursors across Heron nodes.
// It is the Pro tier cache and the remote layer of TwoPhaseCache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr and verifies the server answers.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

// GetPolicy reads the policy stored under its normalized number.
func (c *RedisCache) GetPolicy(ctx context.Context, policyNumber string) (*domain.Policy, error) {
	data, err := c.client.Get(ctx, policyPrefix+policyKey(policyNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached policy %s: %w", policyNumber, err)
	}
	p, err := decodePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached policy %s: %w", policyNumber, err)
	}
	return p, nil
}

// SetPolicy stores p as JSON with the given expiry.
func (c *RedisCache) SetPolicy(ctx context.Context, p *domain.Policy, ttl time.Duration) error {
	data, err := encodePolicy(p)
	if err != nil {
		return fmt.Errorf("failed to encode policy %s: %w", p.PolicyNumber, err)
	}
	return c.client.Set(ctx, policyPrefix+policyKey(p.PolicyNumber), data, ttl).Err()
}

// InvalidatePolicy deletes the cached policy.
func (c *RedisCache) InvalidatePolicy(ctx context.Context, policyNumber string) error {
	return c.client.Del(ctx, policyPrefix+policyKey(policyNumber)).Err()
}

// NextCursor increments the cursor and pushes its expiry out by idle, in one transaction.
func (c *RedisCache) NextCursor(ctx context.Context, name string, idle time.Duration) (int64, error) {
	key := cursorPrefix + name

	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, idle)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to advance cursor %s: %w", name, err)
	}
	return incr.Val(), nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
