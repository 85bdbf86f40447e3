package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the layout for calendar dates exchanged over the API and stored in the database.
const DateFormat = "2006-01-02"

// MaxAmount is the largest claim or coverage amount accepted. Amounts are scored in
// whole cents, and rule arithmetic on cents must stay inside int64.
var MaxAmount = decimal.New(1, 12)

// ValidAmount reports whether d is a positive amount in whole cents no larger than MaxAmount.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(2)) && d.LessThanOrEqual(MaxAmount)
}

// PolicyStatus is the lifecycle state of a policy.
type PolicyStatus string

const (
	PolicyPending   PolicyStatus = "pending"
	PolicyApproved  PolicyStatus = "approved"
	PolicyActive    PolicyStatus = "active"
	PolicyExpired   PolicyStatus = "expired"
	PolicyCancelled PolicyStatus = "cancelled"
)

var policyTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyPending:  {PolicyApproved, PolicyCancelled},
	PolicyApproved: {PolicyActive, PolicyCancelled},
	PolicyActive:   {PolicyExpired, PolicyCancelled},
}

// CanTransitionTo reports whether a policy in status s may move to next.
func (s PolicyStatus) CanTransitionTo(next PolicyStatus) bool {
	for _, allowed := range policyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParsePolicyStatus normalizes a status string. The second result is false for unknown values.
func ParsePolicyStatus(s string) (PolicyStatus, bool) {
	status := PolicyStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case PolicyPending, PolicyApproved, PolicyActive, PolicyExpired, PolicyCancelled:
		return status, true
	}
	return "", false
}

// Policy is an insurance policy as seen by claim intake.
type Policy struct {
	ID           string       `json:"id"`
	PolicyNumber string       `json:"policyNumber"`
	CustomerID   string       `json:"customerId"`
	Type         string       `json:"type"`
	Status       PolicyStatus `json:"status"`

	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	Premium        decimal.Decimal `json:"premium"`
	CoverageStart  time.Time       `json:"coverageStart"`
	CoverageEnd    time.Time       `json:"coverageEnd"`

	// CoveredClaimTypes restricts which claim types may be filed. Empty means unrestricted.
	CoveredClaimTypes []string `json:"coveredClaimTypes"`

	// MaxClaimsPerYear caps same-type claims in a trailing 12 months. Nil means unlimited.
	MaxClaimsPerYear *int `json:"maxClaimsPerYear,omitempty"`

	AssignedTo string     `json:"assignedTo,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

// IsActive compares the stored status to "active" without regard to case.
func (p *Policy) IsActive() bool {
	return strings.EqualFold(string(p.Status), string(PolicyActive))
}

// Covers reports whether t falls inside the inclusive coverage window.
func (p *Policy) Covers(t time.Time) bool {
	return !t.Before(p.CoverageStart) && !t.After(p.CoverageEnd)
}

// CoversClaimType reports whether claimType is a case-insensitive member of CoveredClaimTypes.
// An empty list covers every type.
func (p *Policy) CoversClaimType(claimType string) bool {
	if len(p.CoveredClaimTypes) == 0 {
		return true
	}
	for _, t := range p.CoveredClaimTypes {
		if strings.EqualFold(t, claimType) {
			return true
		}
	}
	return false
}
