package policy

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/assignment"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/sla"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo  *repository.SQLRepository
	lru   *cache.LRUCache
	svc   *Service
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "policy-test-*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(100)
	t.Cleanup(func() { lru.Close() })

	f := &fixture{repo: repo, lru: lru, clock: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }

	ctx := context.Background()
	for _, u := range []*domain.User{
		{ID: "uw-1", Email: "uw1@example.com", Name: "Una", Role: domain.RoleUnderwriter, CreatedAt: f.clock},
		{ID: "uw-2", Email: "uw2@example.com", Name: "Wes", Role: domain.RoleUnderwriter, CreatedAt: f.clock},
		{ID: "cust-1", Email: "c1@example.com", Name: "Cara", Role: domain.RoleCustomer, CreatedAt: f.clock},
	} {
		require.NoError(t, repo.SaveUser(ctx, u))
	}

	f.svc = NewService(Deps{
		Policies: repo,
		Assigner: assignment.NewRoundRobin(repo, lru),
		Notifier: notify.NewService(repo, nil).WithClock(now),
		SLA:      sla.NewTracker(repo).WithClock(now),
		Cache:    lru,
	}, domain.PoliciesConfig{}).WithClock(now)
	return f
}

func (f *fixture) apply(t *testing.T, customer string) *domain.Policy {
	t.Helper()
	f.clock = f.clock.Add(time.Second)
	p, err := f.svc.Apply(context.Background(), ApplyRequest{
		CustomerID:     customer,
		Type:           "Auto",
		CoverageAmount: decimal.NewFromInt(50000),
		Premium:        decimal.NewFromInt(1200),
		StartDate:      "2025-04-01",
		EndDate:        "2026-03-31",
	}, customer)
	require.NoError(t, err)
	return p
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.apply(t, "cust-1")
	second := f.apply(t, "cust-1")

	assert.Equal(t, domain.PolicyPending, first.Status)
	assert.Regexp(t, `^POL-\d+$`, first.PolicyNumber)
	assert.Equal(t, "uw-1", first.AssignedTo)
	assert.Equal(t, "uw-2", second.AssignedTo, "underwriters are assigned in turn")

	stored, err := f.svc.Get(ctx, first.PolicyNumber)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.True(t, stored.CoverageAmount.Equal(decimal.NewFromInt(50000)))

	notes, err := f.repo.ListNotifications(ctx, "uw-1", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "New Policy Application", notes[0].Title)
	assert.Equal(t, "Policy "+first.PolicyNumber+" requires review", notes[0].Message)

	open, err := f.repo.ListOpenSLA(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, domain.EntityPolicy, open[0].EntityType)
	assert.Equal(t, sla.PolicyTargetHours, open[0].TargetHours)
}

func TestApplySameMillisecond(t *testing.T) {
	f := newFixture(t)
	req := ApplyRequest{
		CustomerID:     "cust-1",
		Type:           "Home",
		CoverageAmount: decimal.NewFromInt(250000),
		Premium:        decimal.NewFromInt(900),
		StartDate:      "2025-04-01",
		EndDate:        "2026-03-31",
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		p, err := f.svc.Apply(context.Background(), req, "cust-1")
		require.NoError(t, err)
		assert.False(t, seen[p.PolicyNumber], "duplicate number %s", p.PolicyNumber)
		seen[p.PolicyNumber] = true
	}
	assert.True(t, seen[fmt.Sprintf("POL-%d", f.clock.UnixMilli()+2)])
}

func TestApplyValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Apply(context.Background(), ApplyRequest{
		CoverageAmount: decimal.Zero,
		Premium:        decimal.NewFromInt(-1),
		StartDate:      "2025-05-01",
		EndDate:        "2025-04-01",
	}, "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"customerId", "type", "coverageAmount", "premium", "endDate"} {
		assert.Contains(t, verr.Errors, field)
	}
	assert.NotContains(t, verr.Errors, "startDate")

	_, err = f.svc.Apply(context.Background(), ApplyRequest{
		CustomerID:     "cust-1",
		Type:           "Home",
		CoverageAmount: decimal.NewFromInt(1),
		StartDate:      "04/01/2025",
		EndDate:        "2025-04-01",
	}, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"startDate": "Enter a valid date (YYYY-MM-DD)."}, verr.Errors)

	_, err = f.svc.Apply(context.Background(), ApplyRequest{
		CustomerID:     "cust-1",
		Type:           "Home",
		CoverageAmount: decimal.RequireFromString("100.005"),
		StartDate:      "2025-04-01",
		EndDate:        "2026-04-01",
	}, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"coverageAmount": "Enter a valid coverage amount."}, verr.Errors)
}

func TestListByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.apply(t, "cust-1")
	theirs := f.apply(t, "cust-2")

	got, err := f.svc.List(ctx, domain.RoleCustomer, "cust-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)

	_, err = f.svc.List(ctx, domain.RoleCustomer, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err = f.svc.List(ctx, domain.RoleManager, "mgr-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, theirs.ID, got[0].ID, "newest first")

	queue, err := f.svc.Queue(ctx, "uw-2")
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, theirs.ID, queue[0].ID)

	_, err = f.svc.Queue(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.apply(t, "cust-1")
	require.NoError(t, f.lru.SetPolicy(ctx, p, time.Minute))

	f.clock = f.clock.Add(6 * time.Hour)
	updated, err := f.svc.UpdateStatus(ctx, p.ID, domain.PolicyApproved, "uw-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyApproved, updated.Status)
	require.NotNil(t, updated.ApprovedAt)
	assert.True(t, updated.ApprovedAt.Equal(f.clock))

	cached, err := f.lru.GetPolicy(ctx, p.PolicyNumber)
	require.NoError(t, err)
	assert.Nil(t, cached, "status change drops the cached policy")

	notes, err := f.repo.ListNotifications(ctx, "cust-1", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Policy Approved", notes[0].Title)
	assert.Equal(t, "Your policy "+p.PolicyNumber+" has been approved", notes[0].Message)

	open, err := f.repo.ListOpenSLA(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = f.svc.UpdateStatus(ctx, p.ID, domain.PolicyPending, "uw-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, p.PolicyNumber, domain.PolicyActive, "uw-1")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, "POL-missing", domain.PolicyActive, "uw-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
