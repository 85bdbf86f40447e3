// Package policy handles policy applications and underwriting decisions.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/assignment"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/refid"
	"github.com/opensource-finance/heron/internal/sla"
	"github.com/shopspring/decimal"
)

// ApplyRequest is a policy application.
type ApplyRequest struct {
	CustomerID        string          `json:"customerId"`
	Type              string          `json:"type"`
	CoverageAmount    decimal.Decimal `json:"coverageAmount"`
	Premium           decimal.Decimal `json:"premium"`
	StartDate         string          `json:"startDate"`
	EndDate           string          `json:"endDate"`
	CoveredClaimTypes []string        `json:"coveredClaimTypes,omitempty"`
	MaxClaimsPerYear  *int            `json:"maxClaimsPerYear,omitempty"`
}

func (r *ApplyRequest) validate() (start, end time.Time, err error) {
	errs := map[string]string{}

	if strings.TrimSpace(r.CustomerID) == "" {
		errs["customerId"] = "This field is required."
	}
	if strings.TrimSpace(r.Type) == "" {
		errs["type"] = "This field is required."
	}
	if !domain.ValidAmount(r.CoverageAmount) {
		errs["coverageAmount"] = "Enter a valid coverage amount."
	}
	if r.Premium.IsNegative() {
		errs["premium"] = "Premium must not be negative."
	}
	if r.MaxClaimsPerYear != nil && *r.MaxClaimsPerYear < 0 {
		errs["maxClaimsPerYear"] = "Maximum claims per year must not be negative."
	}

	start, startErr := time.Parse(domain.DateFormat, strings.TrimSpace(r.StartDate))
	if startErr != nil {
		errs["startDate"] = "Enter a valid date (YYYY-MM-DD)."
	}
	end, endErr := time.Parse(domain.DateFormat, strings.TrimSpace(r.EndDate))
	if endErr != nil {
		errs["endDate"] = "Enter a valid date (YYYY-MM-DD)."
	}
	if startErr == nil && endErr == nil && end.Before(start) {
		errs["endDate"] = "End date must not precede start date."
	}

	if len(errs) > 0 {
		return start, end, &domain.ValidationError{Errors: errs}
	}
	return start, end, nil
}

// Service manages policies.
type Service struct {
	policies domain.PolicyStore
	assigner *assignment.RoundRobin
	notifier *notify.Service
	sla      *sla.Tracker
	cache    domain.Cache
	bus      domain.EventBus
	slaHours int
	now      func() time.Time
}

// Deps bundles the collaborators of Service. Cache and Bus may be nil.
type Deps struct {
	Policies domain.PolicyStore
	Assigner *assignment.RoundRobin
	Notifier *notify.Service
	SLA      *sla.Tracker
	Cache    domain.Cache
	Bus      domain.EventBus
}

// NewService creates a policy service.
func NewService(deps Deps, cfg domain.PoliciesConfig) *Service {
	hours := cfg.SLAHours
	if hours <= 0 {
		hours = sla.PolicyTargetHours
	}
	return &Service{
		policies: deps.Policies,
		assigner: deps.Assigner,
		notifier: deps.Notifier,
		sla:      deps.SLA,
		cache:    deps.Cache,
		bus:      deps.Bus,
		slaHours: hours,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Apply creates a pending policy, assigns an underwriter and starts its SLA.
func (s *Service) Apply(ctx context.Context, req ApplyRequest, actor string) (*domain.Policy, error) {
	start, end, err := req.validate()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &domain.Policy{
		ID:                uuid.New().String(),
		PolicyNumber:      refid.PolicyNumber(now),
		CustomerID:        strings.TrimSpace(req.CustomerID),
		Type:              strings.TrimSpace(req.Type),
		Status:            domain.PolicyPending,
		CoverageAmount:    req.CoverageAmount,
		Premium:           req.Premium,
		CoverageStart:     start,
		CoverageEnd:       end,
		CoveredClaimTypes: req.CoveredClaimTypes,
		MaxClaimsPerYear:  req.MaxClaimsPerYear,
		CreatedAt:         now,
	}

	underwriter, err := s.assigner.Next(ctx, domain.RoleUnderwriter)
	if err != nil {
		return nil, err
	}
	if underwriter != nil {
		p.AssignedTo = underwriter.ID
	}

	if err := s.save(ctx, p, now); err != nil {
		return nil, err
	}

	if underwriter != nil {
		s.notifier.Send(ctx, underwriter.ID, "New Policy Application",
			fmt.Sprintf("Policy %s requires review", p.PolicyNumber), domain.NotificationPolicy)
	}
	if _, err := s.sla.Start(ctx, domain.EntityPolicy, p.ID, s.slaHours); err != nil {
		slog.Error("failed to start policy sla", "policy_number", p.PolicyNumber, "error", err)
	}
	s.publish(ctx, domain.TopicPolicyApplied, p, actor, "policy.applied")

	slog.Info("policy application received",
		"policy_number", p.PolicyNumber,
		"customer_id", p.CustomerID,
		"assigned_to", p.AssignedTo,
	)
	return p, nil
}

// numberAttempts bounds how many later milliseconds save tries when a policy number is taken.
const numberAttempts = 5

// save stores a new policy, moving its number forward a millisecond while it collides
// with an existing one.
func (s *Service) save(ctx context.Context, p *domain.Policy, now time.Time) error {
	var err error
	for i := 0; i < numberAttempts; i++ {
		p.PolicyNumber = refid.PolicyNumber(now.Add(time.Duration(i) * time.Millisecond))
		err = s.policies.SavePolicy(ctx, p)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
		slog.Debug("policy number taken, retrying", "policy_number", p.PolicyNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// Get looks a policy up by id or number.
func (s *Service) Get(ctx context.Context, idOrNumber string) (*domain.Policy, error) {
	return s.policies.GetPolicy(ctx, idOrNumber)
}

// List returns policies visible to role: customers see their own, underwriters see
// pending applications plus those assigned to them, other roles see everything.
func (s *Service) List(ctx context.Context, role domain.Role, userID string) ([]*domain.Policy, error) {
	var f domain.PolicyFilter
	switch role {
	case domain.RoleCustomer:
		if userID == "" {
			return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
		}
		f.CustomerID = userID
	case domain.RoleUnderwriter:
		f.ReviewerID = userID
		if userID == "" {
			f = domain.PolicyFilter{Status: domain.PolicyPending}
		}
	}
	return s.policies.ListPolicies(ctx, f)
}

// Queue returns the pending applications assigned to an underwriter.
func (s *Service) Queue(ctx context.Context, underwriterID string) ([]*domain.Policy, error) {
	if underwriterID == "" {
		return nil, fmt.Errorf("%w: underwriterId is required", domain.ErrInvalidInput)
	}
	return s.policies.ListPolicies(ctx, domain.PolicyFilter{
		Status:     domain.PolicyPending,
		AssignedTo: underwriterID,
	})
}

// UpdateStatus moves a policy to status. Approval stamps approved_at, notifies the
// customer and completes the policy SLA.
func (s *Service) UpdateStatus(ctx context.Context, idOrNumber string, status domain.PolicyStatus, actor string) (*domain.Policy, error) {
	p, err := s.policies.GetPolicy(ctx, idOrNumber)
	if err != nil {
		return nil, err
	}

	current, _ := domain.ParsePolicyStatus(string(p.Status))
	if !current.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, p.Status, status)
	}

	now := s.now().UTC()
	var approvedAt *time.Time
	if status == domain.PolicyApproved {
		approvedAt = &now
	}
	if err := s.policies.UpdatePolicyStatus(ctx, p.ID, status, approvedAt); err != nil {
		return nil, fmt.Errorf("failed to update policy status: %w", err)
	}
	p.Status = status
	if approvedAt != nil {
		p.ApprovedAt = approvedAt
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePolicy(ctx, p.PolicyNumber); err != nil {
			slog.Warn("policy cache invalidation failed", "policy_number", p.PolicyNumber, "error", err)
		}
	}

	if current == domain.PolicyPending {
		if err := s.sla.Complete(ctx, domain.EntityPolicy, p.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to complete policy sla", "policy_number", p.PolicyNumber, "error", err)
		}
	}
	if status == domain.PolicyApproved {
		s.notifier.Send(ctx, p.CustomerID, "Policy Approved",
			fmt.Sprintf("Your policy %s has been approved", p.PolicyNumber), domain.NotificationPolicy)
	}
	s.publish(ctx, domain.TopicPolicyDecided, p, actor, "policy."+string(status))

	return p, nil
}

func (s *Service) publish(ctx context.Context, topic string, p *domain.Policy, actor, action string) {
	if s.bus == nil {
		return
	}
	event := domain.PolicyEvent{
		PolicyID:     p.ID,
		PolicyNumber: p.PolicyNumber,
		CustomerID:   p.CustomerID,
		Status:       p.Status,
		AssignedTo:   p.AssignedTo,
		Actor:        actor,
		Action:       action,
	}
	if err := bus.PublishJSON(ctx, s.bus, topic, event); err != nil {
		slog.Warn("policy event publish failed", "topic", topic, "error", err)
	}
}
