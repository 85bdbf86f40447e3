// Package eligibility decides whether a proposed claim may be filed against a policy.
//
// Every rule is evaluated and all violations are reported in a fixed order, except
// for an unknown policy and for store failures, which each produce a single reason.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// Reasons reported by the evaluator.
const (
	ReasonPolicyNotFound    = "Policy not found."
	ReasonPolicyInactive    = "Policy is inactive or lapsed."
	ReasonInvalidDate       = "Incident date is invalid."
	ReasonOutsideCoverage   = "Incident date is outside policy coverage window."
	ReasonTypeNotCovered    = "Claim type is not covered by this policy."
	ReasonPossibleDuplicate = "Potential duplicate claim detected within the last 12 months."
	ReasonUnavailable       = "Eligibility check could not be completed. Please try again later."
)

const (
	// DefaultTimeout bounds the store reads of one check.
	DefaultTimeout = 5 * time.Second

	// HistoryWindow is the trailing window for the duplicate and per-year cap checks.
	HistoryWindow = 365 * 24 * time.Hour
)

// MaxClaimsReason formats the per-year cap violation.
func MaxClaimsReason(limit int, claimType string) string {
	return fmt.Sprintf("Policy exceeds the maximum of %d %s claim(s) allowed within the last 12 months.", limit, claimType)
}

// Store is the read-only view of the policy catalog and claim history.
type Store interface {
	// FindPolicy returns domain.ErrNotFound when no policy matches.
	FindPolicy(ctx context.Context, policyNumber string) (*domain.Policy, error)
	FindClaimsByPolicyAndType(ctx context.Context, policyNumber, claimType string, since time.Time) ([]*domain.Claim, error)
}

// Evaluator checks claim eligibility.
type Evaluator struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout bounds the store reads of each check. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator reading from store.
func NewEvaluator(store Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:   store,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check evaluates req. It never returns an error: store failures and timeouts yield an
// ineligible decision carrying ReasonUnavailable.
func (e *Evaluator) Check(ctx context.Context, req domain.EligibilityRequest) domain.EligibilityDecision {
	req.PolicyNumber = strings.TrimSpace(req.PolicyNumber)
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	policy, err := e.store.FindPolicy(ctx, req.PolicyNumber)
	switch {
	case errors.Is(err, domain.ErrNotFound), err == nil && policy == nil:
		return domain.Ineligible(ReasonPolicyNotFound)
	case err != nil:
		e.logger.Error("eligibility policy lookup failed",
			"policy_number", req.PolicyNumber,
			"error", err,
		)
		return domain.Ineligible(ReasonUnavailable)
	}

	var reasons []string

	if !policy.IsActive() {
		reasons = append(reasons, ReasonPolicyInactive)
	}

	if incident, ok := ParseIncidentDate(req.IncidentDate); !ok {
		reasons = append(reasons, ReasonInvalidDate)
	} else if !policy.Covers(incident) {
		reasons = append(reasons, ReasonOutsideCoverage)
	}

	if !policy.CoversClaimType(req.ClaimType) {
		reasons = append(reasons, ReasonTypeNotCovered)
	}

	since := e.now().UTC().Add(-HistoryWindow)
	history, err := e.store.FindClaimsByPolicyAndType(ctx, policy.PolicyNumber, req.ClaimType, since)
	if err != nil {
		e.logger.Error("eligibility claim history lookup failed",
			"policy_number", policy.PolicyNumber,
			"claim_type", req.ClaimType,
			"error", err,
		)
		return domain.Ineligible(ReasonUnavailable)
	}
	if reason := duplicateReason(policy, req.ClaimType, len(history)); reason != "" {
		reasons = append(reasons, reason)
	}

	if len(reasons) == 0 {
		return domain.Eligible()
	}
	return domain.Ineligible(reasons...)
}

func duplicateReason(policy *domain.Policy, claimType string, n int) string {
	if policy.MaxClaimsPerYear != nil && n >= *policy.MaxClaimsPerYear {
		return MaxClaimsReason(*policy.MaxClaimsPerYear, claimType)
	}
	if n > 0 {
		return ReasonPossibleDuplicate
	}
	return ""
}

var incidentLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	domain.DateFormat,
}

// ParseIncidentDate parses an ISO 8601 date or timestamp and returns the calendar date
// at UTC midnight, the form coverage windows are stored in.
func ParseIncidentDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range incidentLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
