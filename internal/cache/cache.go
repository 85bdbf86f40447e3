package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// New builds the cache named by cfg.Type. A "redis" cache with EnableTwoPhase
// set gets an in-process LRU in front of it.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		if !cfg.EnableTwoPhase {
			return remote, nil
		}
		return NewTwoPhaseCache(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache reads policies from a local LRU before asking the shared
// cache. A write or invalidation on one node only clears that node's local
// copy, so other nodes may serve a stale policy for up to localTTL.
// Cursors always go to the shared cache so every node rotates together.
type TwoPhaseCache struct {
	local    *LRUCache
	shared   domain.Cache
	localTTL time.Duration
}

// NewTwoPhaseCache layers local over shared. localTTL defaults to 5 minutes.
func NewTwoPhaseCache(local *LRUCache, shared domain.Cache, localTTL time.Duration) *TwoPhaseCache {
	if localTTL <= 0 {
		localTTL = 5 * time.Minute
	}
	return &TwoPhaseCache{local: local, shared: shared, localTTL: localTTL}
}

func (c *TwoPhaseCache) capTTL(ttl time.Duration) time.Duration {
	return min(ttl, c.localTTL)
}

// GetPolicy tries the local layer, then the shared one, refilling local on a shared hit.
func (c *TwoPhaseCache) GetPolicy(ctx context.Context, policyNumber string) (*domain.Policy, error) {
	if p, _ := c.local.GetPolicy(ctx, policyNumber); p != nil {
		return p, nil
	}

	p, err := c.shared.GetPolicy(ctx, policyNumber)
	if err != nil || p == nil {
		return nil, err
	}
	if err := c.local.SetPolicy(ctx, p, c.localTTL); err != nil {
		slog.Debug("failed to refill local policy cache", "policy_number", policyNumber, "error", err)
	}
	return p, nil
}

// SetPolicy writes both layers.
func (c *TwoPhaseCache) SetPolicy(ctx context.Context, p *domain.Policy, ttl time.Duration) error {
	if err := c.local.SetPolicy(ctx, p, c.capTTL(ttl)); err != nil {
		return err
	}
	return c.shared.SetPolicy(ctx, p, ttl)
}

// InvalidatePolicy clears both layers on this node.
func (c *TwoPhaseCache) InvalidatePolicy(ctx context.Context, policyNumber string) error {
	if err := c.local.InvalidatePolicy(ctx, policyNumber); err != nil {
		return err
	}
	return c.shared.InvalidatePolicy(ctx, policyNumber)
}

// NextCursor advances the shared cursor.
func (c *TwoPhaseCache) NextCursor(ctx context.Context, name string, idle time.Duration) (int64, error) {
	return c.shared.NextCursor(ctx, name, idle)
}

// Ping checks the shared layer; the local one cannot fail.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.shared.Ping(ctx); err != nil {
		return fmt.Errorf("shared cache unreachable: %w", err)
	}
	return nil
}

// Close closes both layers.
func (c *TwoPhaseCache) Close() error {
	return errors.Join(c.local.Close(), c.shared.Close())
}
