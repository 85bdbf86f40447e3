package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/metrics"
)

// Decision actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionPay     = "pay"
)

var actionStatus = map[string]domain.ClaimStatus{
	ActionApprove: domain.ClaimApproved,
	ActionReject:  domain.ClaimRejected,
	ActionPay:     domain.ClaimPaid,
}

// Get looks a claim up by id or claim number.
func (s *Service) Get(ctx context.Context, idOrNumber string) (*domain.Claim, error) {
	return s.claims.GetClaim(ctx, idOrNumber)
}

// List returns the claims visible to role: customers see their own, adjusters and
// analysts see those assigned to them, other roles see everything. Newest first.
func (s *Service) List(ctx context.Context, role domain.Role, userID string) ([]*domain.Claim, error) {
	var f domain.ClaimFilter
	switch role {
	case domain.RoleCustomer:
		if userID == "" {
			return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
		}
		f.CustomerID = userID
	case domain.RoleAdjuster, domain.RoleAnalyst:
		f.AssignedTo = userID
	}
	return s.claims.ListClaims(ctx, f)
}

// Decide applies an approve, reject or pay action. The fraud score is left as computed
// at submission.
func (s *Service) Decide(ctx context.Context, idOrNumber, action, actor string) (*domain.Claim, error) {
	status, ok := actionStatus[action]
	if !ok {
		return nil, ErrInvalidAction
	}

	c, err := s.claims.GetClaim(ctx, idOrNumber)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, c.Status, status)
	}

	resolvedAt := c.ResolvedAt
	if status != domain.ClaimPaid {
		now := s.now().UTC()
		resolvedAt = &now
	}
	if err := s.claims.UpdateClaimStatus(ctx, c.ID, status, resolvedAt); err != nil {
		return nil, fmt.Errorf("failed to update claim status: %w", err)
	}
	c.Status = status
	c.ResolvedAt = resolvedAt

	if status != domain.ClaimPaid {
		if err := s.sla.Complete(ctx, domain.EntityClaim, c.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to complete claim sla", "claim_number", c.ClaimNumber, "error", err)
		}
	}

	switch status {
	case domain.ClaimApproved:
		s.notifier.Send(ctx, c.CustomerID, "Claim Approved",
			fmt.Sprintf("Your claim %s has been approved. We will contact you with settlement details.", c.ClaimNumber),
			domain.NotificationClaim)
	case domain.ClaimRejected:
		s.notifier.Send(ctx, c.CustomerID, "Claim Rejected",
			fmt.Sprintf("Your claim %s was rejected. Please review the decision or contact support for assistance.", c.ClaimNumber),
			domain.NotificationClaim)
	case domain.ClaimPaid:
		s.notifier.Send(ctx, c.CustomerID, "Claim Paid",
			fmt.Sprintf("Your claim %s has been paid.", c.ClaimNumber),
			domain.NotificationClaim)
	}

	s.publish(ctx, domain.TopicClaimDecided, c, actor, "claim."+string(status))
	metrics.ClaimDecisions.WithLabelValues(string(status)).Inc()

	slog.Info("claim decided",
		"claim_number", c.ClaimNumber,
		"status", status,
		"actor", actor,
	)
	return c, nil
}

func (s *Service) publish(ctx context.Context, topic string, c *domain.Claim, actor, action string) {
	if s.bus == nil {
		return
	}
	event := domain.ClaimEvent{
		ClaimID:      c.ID,
		ClaimNumber:  c.ClaimNumber,
		PolicyNumber: c.PolicyNumber,
		CustomerID:   c.CustomerID,
		Status:       c.Status,
		FraudScore:   c.FraudScore,
		Flagged:      c.Flagged,
		AssignedTo:   c.AssignedTo,
		Actor:        actor,
		Action:       action,
	}
	if err := bus.PublishJSON(ctx, s.bus, topic, event); err != nil {
		slog.Warn("claim event publish failed", "topic", topic, "claim_number", c.ClaimNumber, "error", err)
	}
}
