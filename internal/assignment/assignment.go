// Package assignment picks the holder of a role who receives the next work item.
package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// CursorWindow is how long a round-robin cursor lives without use before it restarts.
const CursorWindow = 24 * time.Hour

// UserLister lists holders of a role ordered by id.
type UserLister interface {
	ListUsersByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}

// RoundRobin rotates through the holders of each role. The cursor lives in the cache
// so several server instances sharing Redis rotate together.
type RoundRobin struct {
	users UserLister
	cache domain.Cache
}

// NewRoundRobin creates an assigner.
func NewRoundRobin(users UserLister, cache domain.Cache) *RoundRobin {
	return &RoundRobin{users: users, cache: cache}
}

// Next returns the next holder of role, or nil when nobody holds it.
func (r *RoundRobin) Next(ctx context.Context, role domain.Role) (*domain.User, error) {
	holders, err := r.users.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s users: %w", role, err)
	}
	if len(holders) == 0 {
		return nil, nil
	}
	if len(holders) == 1 || r.cache == nil {
		return holders[0], nil
	}

	n, err := r.cache.NextCursor(ctx, "assign:"+string(role), CursorWindow)
	if err != nil {
		slog.Warn("assignment cursor unavailable, using first holder",
			"role", role,
			"error", err,
		)
		return holders[0], nil
	}

	idx := int((n - 1) % int64(len(holders)))
	if idx < 0 {
		idx = 0
	}
	return holders[idx], nil
}
