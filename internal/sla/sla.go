// Package sla tracks completion targets for policies and claims.
package sla

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/metrics"
)

const (
	// ClaimTargetHours is the completion target for claims.
	ClaimTargetHours = 72

	// PolicyTargetHours is the completion target for policy applications.
	PolicyTargetHours = 48

	// SummaryWindow is how far back Summary looks.
	SummaryWindow = 30 * 24 * time.Hour

	// atRiskFraction of the target elapsed marks an open record at risk.
	atRiskFraction = 0.75
)

// Tracker starts, completes and sweeps SLA records.
type Tracker struct {
	store domain.SLAStore
	now   func() time.Time
}

// NewTracker creates a tracker over store.
func NewTracker(store domain.SLAStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// WithClock overrides the time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Start opens an SLA record for an entity.
func (t *Tracker) Start(ctx context.Context, entityType domain.EntityType, entityID string, targetHours int) (*domain.SLARecord, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", domain.ErrInvalidInput)
	}
	rec := &domain.SLARecord{
		ID:          uuid.New().String(),
		EntityType:  entityType,
		EntityID:    entityID,
		TargetHours: targetHours,
		CreatedAt:   t.now().UTC(),
	}
	if err := t.store.SaveSLA(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to start %s sla: %w", entityType, err)
	}
	return rec, nil
}

// Complete closes the entity's open record.
func (t *Tracker) Complete(ctx context.Context, entityType domain.EntityType, entityID string) error {
	return t.store.CompleteSLA(ctx, entityType, entityID, t.now().UTC())
}

// Sweep marks every open record past its target as breached and returns how many it marked.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	open, err := t.store.ListOpenSLA(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list open sla records: %w", err)
	}

	now := t.now().UTC()
	var ids []string
	for _, rec := range open {
		if rec.IsBreached(now) {
			ids = append(ids, rec.ID)
			metrics.SLABreaches.WithLabelValues(string(rec.EntityType)).Inc()
		}
	}
	if err := t.store.MarkSLABreached(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to mark sla breaches: %w", err)
	}
	if len(ids) > 0 {
		slog.Info("sla sweep marked breaches", "count", len(ids))
	}
	return len(ids), nil
}

// Summary aggregates records created in the last 30 days per entity type, ordered by type.
// A record counts as breached when flagged or when it is live-breached at the time of the call.
func (t *Tracker) Summary(ctx context.Context) ([]domain.SLASummary, error) {
	now := t.now().UTC()
	records, err := t.store.ListSLASince(ctx, now.Add(-SummaryWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list sla records: %w", err)
	}
	return Summarize(records, now), nil
}

// Summarize aggregates records per entity type at now.
func Summarize(records []*domain.SLARecord, now time.Time) []domain.SLASummary {
	type acc struct {
		summary   domain.SLASummary
		completed int
		hours     float64
	}
	byType := map[domain.EntityType]*acc{}

	for _, rec := range records {
		a, ok := byType[rec.EntityType]
		if !ok {
			a = &acc{summary: domain.SLASummary{EntityType: rec.EntityType}}
			byType[rec.EntityType] = a
		}
		a.summary.Total++

		breached := rec.Breached || rec.IsBreached(now)
		switch {
		case breached:
			a.summary.Breached++
		case rec.CompletedAt == nil && IsAtRisk(rec, now):
			a.summary.AtRisk++
		}

		if rec.CompletedAt != nil {
			a.completed++
			a.hours += rec.CompletedAt.Sub(rec.CreatedAt).Hours()
		}
	}

	summaries := make([]domain.SLASummary, 0, len(byType))
	for _, a := range byType {
		if a.completed > 0 {
			avg := math.Round(a.hours/float64(a.completed)*100) / 100
			a.summary.AvgCompletionHours = &avg
		}
		summaries = append(summaries, a.summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].EntityType < summaries[j].EntityType
	})
	return summaries
}

// IsAtRisk reports whether an open record has used at least three quarters of its target.
func IsAtRisk(rec *domain.SLARecord, now time.Time) bool {
	if rec.CompletedAt != nil || rec.TargetHours <= 0 {
		return false
	}
	target := time.Duration(rec.TargetHours) * time.Hour
	return float64(now.Sub(rec.CreatedAt)) >= atRiskFraction*float64(target)
}
