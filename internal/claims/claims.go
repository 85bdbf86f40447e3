// Package claims runs claim intake: form validation, eligibility, fraud scoring,
// assignment, document storage and persistence. It also applies claim decisions.
package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/assignment"
	"github.com/opensource-finance/heron/internal/attachments"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/eligibility"
	"github.com/opensource-finance/heron/internal/fraud"
	"github.com/opensource-finance/heron/internal/metrics"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/refid"
	"github.com/opensource-finance/heron/internal/sla"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("heron-claims")

// PolicyFinder resolves the policy a claim is filed against.
type PolicyFinder interface {
	FindPolicy(ctx context.Context, policyNumber string) (*domain.Policy, error)
}

// Deps bundles the collaborators of Service. Bus may be nil.
type Deps struct {
	Claims      domain.ClaimStore
	Policies    PolicyFinder
	Eligibility *eligibility.Evaluator
	Scorer      *fraud.Scorer
	Assigner    *assignment.RoundRobin
	Attachments attachments.Store
	Notifier    *notify.Service
	SLA         *sla.Tracker
	Bus         domain.EventBus
}

// Service handles claim intake and decisions.
type Service struct {
	claims      domain.ClaimStore
	policies    PolicyFinder
	eligibility *eligibility.Evaluator
	scorer      *fraud.Scorer
	assigner    *assignment.RoundRobin
	attachments attachments.Store
	notifier    *notify.Service
	sla         *sla.Tracker
	bus         domain.EventBus

	slaHours     int
	maxFileBytes int64
	now          func() time.Time
}

// NewService creates a claim service.
func NewService(deps Deps, cfg domain.ClaimsConfig) *Service {
	hours := cfg.SLAHours
	if hours <= 0 {
		hours = sla.ClaimTargetHours
	}
	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = attachments.DefaultMaxBytes
	}
	return &Service{
		claims:       deps.Claims,
		policies:     deps.Policies,
		eligibility:  deps.Eligibility,
		scorer:       deps.Scorer,
		assigner:     deps.Assigner,
		attachments:  deps.Attachments,
		notifier:     deps.Notifier,
		sla:          deps.SLA,
		bus:          deps.Bus,
		slaHours:     hours,
		maxFileBytes: maxBytes,
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CheckEligibility runs the eligibility evaluator and records the outcome.
func (s *Service) CheckEligibility(ctx context.Context, req domain.EligibilityRequest) domain.EligibilityDecision {
	decision := s.eligibility.Check(ctx, req)
	metrics.ObserveEligibility(decision.Eligible)
	return decision
}

// Submit validates, scores and stores a claim. The returned errors are
// *ValidationError, *FileValidationError and *IneligibleError for refusals; anything
// else is unexpected.
func (s *Service) Submit(ctx context.Context, sub Submission) (*domain.Claim, error) {
	ctx, span := tracer.Start(ctx, "claims.submit")
	defer span.End()

	sub.trim()
	amount, err := sub.Validate()
	if err != nil {
		metrics.ClaimsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}
	if err := ValidateFiles(sub.Files, s.maxFileBytes); err != nil {
		metrics.ClaimsRejected.WithLabelValues("files").Inc()
		return nil, err
	}

	decision := s.CheckEligibility(ctx, domain.EligibilityRequest{
		PolicyNumber: sub.PolicyNumber,
		ClaimType:    sub.ClaimType,
		IncidentDate: sub.IncidentDate,
	})
	if !decision.Eligible {
		metrics.ClaimsRejected.WithLabelValues("eligibility").Inc()
		span.SetAttributes(attribute.StringSlice("eligibility.reasons", decision.Reasons))
		return nil, &IneligibleError{Reasons: decision.Reasons}
	}

	policy, err := s.policies.FindPolicy(ctx, sub.PolicyNumber)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to load policy: %w", err))
	}

	now := s.now().UTC()
	claimNumber, err := refid.New(refid.PrefixClaim, now)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(
		attribute.String("claim.number", claimNumber),
		attribute.String("policy.number", policy.PolicyNumber),
	)

	assessment, err := s.scorer.Assess(ctx, fraud.Input{
		ClaimNumber:   claimNumber,
		CustomerID:    policy.CustomerID,
		ClaimType:     sub.ClaimType,
		Amount:        amount,
		Coverage:      policy.CoverageAmount,
		DocumentCount: len(sub.Files),
	})
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(
		attribute.Int("fraud.score", assessment.Score),
		attribute.Bool("fraud.flagged", assessment.Flagged),
	)

	assignee, err := s.assigner.Next(ctx, assessment.Route)
	if err != nil {
		return nil, s.fail(span, err)
	}

	stored, err := s.storeFiles(ctx, claimNumber, sub.Files)
	if err != nil {
		return nil, s.fail(span, err)
	}

	claim := &domain.Claim{
		ID:               uuid.New().String(),
		ClaimNumber:      claimNumber,
		PolicyID:         policy.ID,
		PolicyNumber:     policy.PolicyNumber,
		CustomerID:       policy.CustomerID,
		Type:             sub.ClaimType,
		ClaimantName:     sub.ClaimantName,
		ClaimantEmail:    sub.ClaimantEmail,
		IncidentDate:     sub.IncidentDate,
		IncidentTime:     sub.IncidentTime,
		IncidentLocation: sub.IncidentLocation,
		Description:      sub.Description,
		AdditionalNotes:  sub.AdditionalNotes,
		Amount:           amount,
		DocumentCount:    len(sub.Files),
		Attachments:      stored,
		Status:           domain.ClaimSubmitted,
		FraudScore:       assessment.Score,
		Flagged:          assessment.Flagged,
		CreatedAt:        now,
	}
	if assignee != nil {
		claim.AssignedTo = assignee.ID
		claim.Status = domain.ClaimUnderReview
	}

	if err := s.claims.SaveClaim(ctx, claim); err != nil {
		s.removeFiles(ctx, stored)
		return nil, s.fail(span, fmt.Errorf("failed to save claim: %w", err))
	}

	if _, err := s.sla.Start(ctx, domain.EntityClaim, claim.ID, s.slaHours); err != nil {
		slog.Error("failed to start claim sla", "claim_number", claimNumber, "error", err)
	}
	if assignee != nil {
		s.notifyAssignee(ctx, claim, assignee.ID)
	}

	s.publish(ctx, domain.TopicClaimSubmitted, claim, "", "claim.submitted")
	if claim.Flagged {
		s.publish(ctx, domain.TopicClaimFlagged, claim, "", "claim.flagged")
	}

	metrics.ClaimsSubmitted.WithLabelValues(string(assessment.Route)).Inc()
	metrics.FraudScore.Observe(float64(assessment.Score))

	slog.Info("claim submitted",
		"claim_number", claimNumber,
		"policy_number", policy.PolicyNumber,
		"fraud_score", assessment.Score,
		"flagged", assessment.Flagged,
		"route", assessment.Route,
		"assigned_to", claim.AssignedTo,
		"documents", len(stored),
	)
	return claim, nil
}

func (s *Service) notifyAssignee(ctx context.Context, c *domain.Claim, userID string) {
	title := "New Claim Assigned"
	message := fmt.Sprintf("Claim %s requires review", c.ClaimNumber)
	if c.Flagged {
		title = "Flagged Claim Assigned"
		message = fmt.Sprintf("Claim %s was flagged for investigation (fraud score %d)", c.ClaimNumber, c.FraudScore)
	}
	s.notifier.Send(ctx, userID, title, message, domain.NotificationClaim)
}

func (s *Service) storeFiles(ctx context.Context, claimNumber string, files []File) ([]string, error) {
	stored := make([]string, 0, len(files))
	if len(files) == 0 {
		return stored, nil
	}
	if s.attachments == nil {
		return nil, errors.New("no attachment store configured")
	}

	keys := attachments.NewKeySet(claimNumber)
	for _, f := range files {
		key, err := s.storeFile(ctx, keys.Next(f.Name), f)
		if err != nil {
			s.removeFiles(ctx, stored)
			return nil, fmt.Errorf("failed to store %s: %w", f.Name, err)
		}
		stored = append(stored, key)
	}
	return stored, nil
}

func (s *Service) storeFile(ctx context.Context, key string, f File) (string, error) {
	body, err := f.Open()
	if err != nil {
		return "", err
	}
	defer body.Close()
	return s.attachments.Put(ctx, key, mediaType(f.ContentType), body, f.Size)
}

func (s *Service) removeFiles(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.attachments.Delete(ctx, key); err != nil {
			slog.Warn("failed to remove attachment", "key", key, "error", err)
		}
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
