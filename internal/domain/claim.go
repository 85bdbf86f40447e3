package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimSubmitted   ClaimStatus = "submitted"
	ClaimUnderReview ClaimStatus = "under_review"
	ClaimApproved    ClaimStatus = "approved"
	ClaimRejected    ClaimStatus = "rejected"
	ClaimPaid        ClaimStatus = "paid"
)

var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimSubmitted:   {ClaimUnderReview, ClaimApproved, ClaimRejected},
	ClaimUnderReview: {ClaimApproved, ClaimRejected},
	ClaimApproved:    {ClaimPaid},
}

// CanTransitionTo reports whether a claim in status s may move to next.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range claimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s ClaimStatus) IsTerminal() bool {
	return len(claimTransitions[s]) == 0
}

// Claim is a submitted insurance claim. FraudScore and Flagged are computed once at creation.
type Claim struct {
	ID           string `json:"id"`
	ClaimNumber  string `json:"claimNumber"`
	PolicyID     string `json:"policyId"`
	PolicyNumber string `json:"policyNumber"`
	CustomerID   string `json:"customerId"`
	Type         string `json:"type"`

	ClaimantName     string `json:"claimantName"`
	ClaimantEmail    string `json:"claimantEmail"`
	IncidentDate     string `json:"incidentDate"`
	IncidentTime     string `json:"incidentTime"`
	IncidentLocation string `json:"incidentLocation"`
	Description      string `json:"description"`
	AdditionalNotes  string `json:"additionalNotes,omitempty"`

	Amount        decimal.Decimal `json:"amount"`
	DocumentCount int             `json:"documentCount"`
	Attachments   []string        `json:"attachments"`

	Status     ClaimStatus `json:"status"`
	FraudScore int         `json:"fraudScore"`
	Flagged    bool        `json:"flagged"`
	AssignedTo string      `json:"assignedTo,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}
