package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/sla"
)

func newTestRepo(t *testing.T) *repository.SQLRepository {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "worker-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func waitForAudit(t *testing.T, repo *repository.SQLRepository, want int) []*domain.AuditEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := repo.ListAudit(context.Background(), 100)
		if err != nil {
			t.Fatalf("ListAudit failed: %v", err)
		}
		if len(entries) >= want || time.Now().After(deadline) {
			return entries
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, newTestRepo(t), nil, nil)

		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != len(AuditTopics) {
			t.Errorf("expected %d subscriptions, got %d", len(AuditTopics), stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("AuditsClaimAndPolicyEvents", func(t *testing.T) {
		repo := newTestRepo(t)
		w := NewWorker(eventBus, repo, nil, nil)
		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		ctx := context.Background()
		bus.PublishJSON(ctx, eventBus, domain.TopicClaimDecided, domain.ClaimEvent{
			ClaimID:     "claim-1",
			ClaimNumber: "CLM-20250301120000-abc123",
			Status:      domain.ClaimApproved,
			FraudScore:  20,
			Actor:       "adjuster-1",
			Action:      "claim.approved",
		})
		bus.PublishJSON(ctx, eventBus, domain.TopicPolicyApplied, domain.PolicyEvent{
			PolicyID:     "policy-1",
			PolicyNumber: "POL-1740830400000",
			CustomerID:   "cust-1",
			Status:       domain.PolicyPending,
			Action:       "policy.applied",
		})

		entries := waitForAudit(t, repo, 2)
		if len(entries) != 2 {
			t.Fatalf("expected 2 audit entries, got %d", len(entries))
		}

		byEntity := map[string]*domain.AuditEntry{}
		for _, e := range entries {
			byEntity[e.EntityID] = e
		}

		claim := byEntity["claim-1"]
		if claim == nil {
			t.Fatal("missing claim audit entry")
		}
		if claim.EntityType != domain.EntityClaim || claim.Action != "claim.approved" || claim.Actor != "adjuster-1" {
			t.Errorf("unexpected claim entry %+v", claim)
		}
		if claim.Details["claimNumber"] != "CLM-20250301120000-abc123" {
			t.Errorf("expected claim number in details, got %v", claim.Details)
		}

		policy := byEntity["policy-1"]
		if policy == nil {
			t.Fatal("missing policy audit entry")
		}
		if policy.EntityType != domain.EntityPolicy || policy.Action != "policy.applied" {
			t.Errorf("unexpected policy entry %+v", policy)
		}

		if w.GetStats().AuditEntries != 2 {
			t.Errorf("expected 2 audited events, got %d", w.GetStats().AuditEntries)
		}
	})

	t.Run("IgnoresUnrelatedTopics", func(t *testing.T) {
		repo := newTestRepo(t)
		w := NewWorker(eventBus, repo, nil, nil)
		w.Start(Config{})
		defer w.Stop()

		bus.PublishJSON(context.Background(), eventBus, domain.TopicClaimFlagged, domain.ClaimEvent{ClaimID: "claim-2"})
		time.Sleep(50 * time.Millisecond)

		entries, _ := repo.ListAudit(context.Background(), 10)
		if len(entries) != 0 {
			t.Errorf("flagged events are not audited, got %d entries", len(entries))
		}
	})
}

func TestSLASweepLoop(t *testing.T) {
	repo := newTestRepo(t)
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	created := time.Now().UTC().Add(-100 * time.Hour)
	tracker := sla.NewTracker(repo).WithClock(func() time.Time { return created })
	if _, err := tracker.Start(context.Background(), domain.EntityClaim, "claim-1", sla.ClaimTargetHours); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	tracker.WithClock(time.Now)

	w := NewWorker(eventBus, repo, tracker, nil)
	if err := w.Start(Config{SLASweepInterval: 10 * time.Millisecond}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.GetStats().SLASweeps == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	if w.GetStats().SLASweeps == 0 {
		t.Fatal("expected at least one sla sweep")
	}

	records, err := repo.ListSLASince(context.Background(), created.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListSLASince failed: %v", err)
	}
	if len(records) != 1 || !records[0].Breached {
		t.Errorf("expected the overdue record to be marked breached, got %+v", records)
	}
}

func TestAuditEntryTraceID(t *testing.T) {
	msg := &domain.Message{
		ID:        "01jabc",
		Topic:     domain.TopicPolicyDecided,
		Payload:   []byte(`{"policyId":"policy-9","policyNumber":"POL-9","status":"active","action":"policy.active"}`),
		Metadata:  map[string]string{domain.MetaTraceID: "4bf92f3577b34da6a3ce929d0e0e4736"},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano(),
	}

	entry, err := auditEntry(msg)
	if err != nil {
		t.Fatalf("auditEntry failed: %v", err)
	}
	if entry.Details["traceId"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected trace id in details, got %v", entry.Details)
	}
	if !entry.CreatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("expected event timestamp, got %v", entry.CreatedAt)
	}

	msg.Metadata = nil
	entry, err = auditEntry(msg)
	if err != nil {
		t.Fatalf("auditEntry failed: %v", err)
	}
	if _, ok := entry.Details["traceId"]; ok {
		t.Error("expected no trace id without metadata")
	}
}
