package workflow

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

func newService(t *testing.T, clock *time.Time) *Service {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "workflow-test-*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return NewService(repo).WithClock(func() time.Time { return *clock })
}

func TestTemplates(t *testing.T) {
	keys := map[string]int{KeyIssuance: 4, KeyRenewal: 3, KeyEndorsement: 3, KeyClaim: 5}
	for key, steps := range keys {
		tmpl := Template(key)
		require.NotNil(t, tmpl, key)
		assert.Len(t, tmpl.Steps, steps, key)
		assert.Equal(t, 1, tmpl.Version)
	}
	assert.Nil(t, Template("UNDERWRITING"))

	Template(KeyClaim).Steps[0].Name = "changed"
	assert.Equal(t, "FNOL Capture", Template(KeyClaim).Steps[0].Name, "templates are copies")
}

func TestSeed(t *testing.T) {
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newService(t, &clock)
	ctx := context.Background()

	n, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "seeding is idempotent")

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCreateFromTemplate(t *testing.T) {
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newService(t, &clock)
	ctx := context.Background()

	w, err := svc.CreateFromTemplate(ctx, "claim", "", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, KeyClaim, w.Key)
	assert.Equal(t, "Claims v2", w.Name)
	assert.Equal(t, 2, w.Version)
	assert.Equal(t, "s5", w.Steps[4].ID)

	named, err := svc.CreateFromTemplate(ctx, KeyIssuance, "Fast track", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "Fast track", named.Name)
	assert.NotEqual(t, w.ID, named.ID)

	stored, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Steps, stored.Steps)

	_, err = svc.CreateFromTemplate(ctx, "UNDERWRITING", "", "admin-1")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateAndDelete(t *testing.T) {
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newService(t, &clock)
	ctx := context.Background()

	w, err := svc.CreateFromTemplate(ctx, KeyRenewal, "", "")
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	inactive := false
	updated, err := svc.Update(ctx, w.ID, domain.WorkflowPatch{
		Active: &inactive,
		Steps:  []domain.WorkflowStep{{ID: "s1", Name: "Reminder Notification", Type: StepAutomation}},
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, "Renewal v2", updated.Name, "name unchanged")
	assert.Equal(t, 3, updated.Version)
	assert.True(t, updated.UpdatedAt.Equal(clock))

	stored, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 1)
	assert.Equal(t, 3, stored.Version)

	require.NoError(t, svc.Delete(ctx, w.ID))
	assert.ErrorIs(t, svc.Delete(ctx, w.ID), domain.ErrNotFound)

	_, err = svc.Update(ctx, w.ID, domain.WorkflowPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
