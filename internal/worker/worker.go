// Package worker consumes claim and policy events into the audit trail and runs the
// periodic SLA and renewal sweeps.
package worker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/renewal"
	"github.com/opensource-finance/heron/internal/sla"
)

// AuditTopics are the topics recorded in the audit trail.
var AuditTopics = []string{
	domain.TopicClaimSubmitted,
	domain.TopicClaimDecided,
	domain.TopicPolicyApplied,
	domain.TopicPolicyDecided,
}

// Worker writes audit entries from bus events and runs sweeps on a schedule.
type Worker struct {
	bus      domain.EventBus
	audit    domain.AuditStore
	sla      *sla.Tracker
	renewals *renewal.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	audited       atomic.Int64
	slaSweeps     atomic.Int64
	renewalSweeps atomic.Int64
}

// Config holds worker configuration. A zero interval disables that sweep.
type Config struct {
	SLASweepInterval     time.Duration
	RenewalSweepInterval time.Duration
}

// NewWorker creates a new worker. The SLA tracker and renewal service may be nil.
func NewWorker(eventBus domain.EventBus, audit domain.AuditStore, tracker *sla.Tracker, renewals *renewal.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		audit:    audit,
		sla:      tracker,
		renewals: renewals,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the audit topics and launches the sweep loops.
func (w *Worker) Start(cfg Config) error {
	for _, topic := range AuditTopics {
		sub, err := w.bus.Subscribe(w.ctx, topic, w.handleMessage)
		if err != nil {
			w.Stop()
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	if w.sla != nil && cfg.SLASweepInterval > 0 {
		w.every(cfg.SLASweepInterval, "sla", w.sweepSLA)
	}
	if w.renewals != nil && cfg.RenewalSweepInterval > 0 {
		w.every(cfg.RenewalSweepInterval, "renewals", w.sweepRenewals)
	}

	slog.Info("worker started",
		"topics", len(w.subscriptions),
		"sla_sweep_interval", cfg.SLASweepInterval.String(),
		"renewal_sweep_interval", cfg.RenewalSweepInterval.String(),
	)
	return nil
}

func (w *Worker) every(interval time.Duration, name string, sweep func(context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Debug("sweep loop started", "sweep", name, "interval", interval.String())
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				sweep(w.ctx)
			}
		}
	}()
}

func (w *Worker) sweepSLA(ctx context.Context) {
	n, err := w.sla.Sweep(ctx)
	if err != nil {
		slog.Error("sla sweep failed", "error", err)
		return
	}
	w.slaSweeps.Add(1)
	if n > 0 {
		slog.Info("sla sweep marked breaches", "breached", n)
	}
}

func (w *Worker) sweepRenewals(ctx context.Context) {
	result, err := w.renewals.Sweep(ctx)
	if err != nil {
		slog.Error("renewal sweep failed", "error", err)
		return
	}
	w.renewalSweeps.Add(1)
	slog.Info("renewal sweep finished",
		"policies_due", result.PoliciesDue,
		"reminders_sent", result.RemindersSent,
	)
}

// handleMessage turns one claim or policy event into an audit entry.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	entry, err := auditEntry(msg)
	if err != nil {
		slog.Error("failed to parse audit event",
			"message_id", msg.ID,
			"topic", msg.Topic,
			"error", err,
		)
		return err
	}

	if err := w.audit.SaveAudit(ctx, entry); err != nil {
		slog.Error("failed to save audit entry",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
		return err
	}
	w.audited.Add(1)

	slog.Debug("audit entry recorded",
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
	)
	return nil
}

func auditEntry(msg *domain.Message) (*domain.AuditEntry, error) {
	entry, err := decodeAudit(msg)
	if err != nil {
		return nil, err
	}
	if traceID := msg.Metadata[domain.MetaTraceID]; traceID != "" {
		entry.Details["traceId"] = traceID
	}
	return entry, nil
}

func decodeAudit(msg *domain.Message) (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{
		ID:        strings.ToLower(ulid.Make().String()),
		CreatedAt: time.Now().UTC(),
	}
	if msg.Timestamp > 0 {
		entry.CreatedAt = time.Unix(0, msg.Timestamp).UTC()
	}

	if strings.HasPrefix(msg.Topic, "heron.claim.") {
		var e domain.ClaimEvent
		if err := bus.Decode(msg, &e); err != nil {
			return nil, err
		}
		entry.Actor = e.Actor
		entry.Action = e.Action
		entry.EntityType = domain.EntityClaim
		entry.EntityID = e.ClaimID
		entry.Details = map[string]any{
			"claimNumber":  e.ClaimNumber,
			"policyNumber": e.PolicyNumber,
			"status":       string(e.Status),
			"fraudScore":   e.FraudScore,
			"flagged":      e.Flagged,
			"assignedTo":   e.AssignedTo,
		}
		return entry, nil
	}

	var e domain.PolicyEvent
	if err := bus.Decode(msg, &e); err != nil {
		return nil, err
	}
	entry.Actor = e.Actor
	entry.Action = e.Action
	entry.EntityType = domain.EntityPolicy
	entry.EntityID = e.PolicyID
	entry.Details = map[string]any{
		"policyNumber": e.PolicyNumber,
		"customerId":   e.CustomerID,
		"status":       string(e.Status),
		"assignedTo":   e.AssignedTo,
	}
	return entry, nil
}

// Stop cancels the sweep loops and unsubscribes.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	AuditEntries      int64    `json:"auditEntries"`
	SLASweeps         int64    `json:"slaSweeps"`
	RenewalSweeps     int64    `json:"renewalSweeps"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		AuditEntries:      w.audited.Load(),
		SLASweeps:         w.slaSweeps.Load(),
		RenewalSweeps:     w.renewalSweeps.Load(),
	}
}
