package eligibility

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// CachedStore reads policies through the cache and claim history straight from the store.
// Claim history is never cached.
type CachedStore struct {
	Store
	cache domain.Cache
	ttl   time.Duration
}

// NewCachedStore wraps store with a read-through policy cache.
func NewCachedStore(store Store, cache domain.Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: store, cache: cache, ttl: ttl}
}

// FindPolicy returns the cached policy or loads and caches it. Cache failures fall back
// to the store.
func (s *CachedStore) FindPolicy(ctx context.Context, policyNumber string) (*domain.Policy, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPolicy(ctx, policyNumber)
		if err != nil {
			slog.Warn("policy cache read failed", "policy_number", policyNumber, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	policy, err := s.Store.FindPolicy(ctx, policyNumber)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && policy != nil {
		if err := s.cache.SetPolicy(ctx, policy, s.ttl); err != nil {
			slog.Warn("policy cache write failed", "policy_number", policyNumber, "error", err)
		}
	}
	return policy, nil
}
