package sla

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *repository.SQLRepository {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "sla-test-*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestStartCompleteSweep(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	clock := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	tracker := NewTracker(repo).WithClock(func() time.Time { return clock })

	_, err := tracker.Start(ctx, domain.EntityClaim, "claim-1", ClaimTargetHours)
	require.NoError(t, err)
	_, err = tracker.Start(ctx, domain.EntityClaim, "claim-2", ClaimTargetHours)
	require.NoError(t, err)
	_, err = tracker.Start(ctx, domain.EntityPolicy, "policy-1", PolicyTargetHours)
	require.NoError(t, err)

	clock = clock.Add(10 * time.Hour)
	require.NoError(t, tracker.Complete(ctx, domain.EntityClaim, "claim-1"))
	assert.ErrorIs(t, tracker.Complete(ctx, domain.EntityClaim, "claim-1"), domain.ErrNotFound)

	clock = clock.Add(40 * time.Hour)
	n, err := tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the 48h policy record is past target")

	clock = clock.Add(30 * time.Hour)
	n, err = tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "claim-2 breaches after 72h; policy-1 already marked")

	n, err = tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStartRejectsBadInput(t *testing.T) {
	tracker := NewTracker(newTestRepo(t))
	ctx := context.Background()

	_, err := tracker.Start(ctx, domain.EntityClaim, "", ClaimTargetHours)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = tracker.Start(ctx, domain.EntityClaim, "claim-1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBreachIsStrict(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &domain.SLARecord{TargetHours: 72, CreatedAt: created}

	assert.False(t, rec.IsBreached(created.Add(72*time.Hour)))
	assert.True(t, rec.IsBreached(created.Add(72*time.Hour+time.Second)))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	completedAt := func(created time.Time, h int) *time.Time {
		at := created.Add(time.Duration(h) * time.Hour)
		return &at
	}

	c1 := now.Add(-100 * time.Hour)
	c2 := now.Add(-60 * time.Hour)
	c3 := now.Add(-10 * time.Hour)
	c4 := now.Add(-200 * time.Hour)
	p1 := now.Add(-5 * time.Hour)

	records := []*domain.SLARecord{
		{ID: "1", EntityType: domain.EntityClaim, TargetHours: 72, CreatedAt: c1},
		{ID: "2", EntityType: domain.EntityClaim, TargetHours: 72, CreatedAt: c2},
		{ID: "3", EntityType: domain.EntityClaim, TargetHours: 72, CreatedAt: c3},
		{ID: "4", EntityType: domain.EntityClaim, TargetHours: 72, CreatedAt: c4, CompletedAt: completedAt(c4, 80), Breached: true},
		{ID: "5", EntityType: domain.EntityPolicy, TargetHours: 48, CreatedAt: p1, CompletedAt: completedAt(p1, 3)},
	}

	got := Summarize(records, now)
	require.Len(t, got, 2)

	claims := got[0]
	assert.Equal(t, domain.EntityClaim, claims.EntityType)
	assert.Equal(t, 4, claims.Total)
	assert.Equal(t, 2, claims.Breached, "live breach and flagged breach")
	assert.Equal(t, 1, claims.AtRisk, "60h of 72h elapsed")
	require.NotNil(t, claims.AvgCompletionHours)
	assert.Equal(t, 80.0, *claims.AvgCompletionHours)

	policies := got[1]
	assert.Equal(t, domain.EntityPolicy, policies.EntityType)
	assert.Equal(t, 1, policies.Total)
	assert.Equal(t, 0, policies.Breached)
	assert.Equal(t, 0, policies.AtRisk)
	assert.Equal(t, 3.0, *policies.AvgCompletionHours)
}

func TestSummaryWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewTracker(repo).WithClock(func() time.Time { return clock })
	tracker.Start(ctx, domain.EntityClaim, "old", ClaimTargetHours)

	clock = clock.Add(40 * 24 * time.Hour)
	tracker.Start(ctx, domain.EntityClaim, "new", ClaimTargetHours)

	got, err := tracker.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Total)
	assert.Nil(t, got[0].AvgCompletionHours)
}

func TestIsAtRisk(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &domain.SLARecord{TargetHours: 48, CreatedAt: created}

	assert.False(t, IsAtRisk(rec, created.Add(35*time.Hour)))
	assert.True(t, IsAtRisk(rec, created.Add(36*time.Hour)))
}
