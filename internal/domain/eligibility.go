package domain

// EligibilityRequest identifies a proposed claim for the eligibility check.
type EligibilityRequest struct {
	PolicyNumber string `json:"policyNumber"`
	ClaimType    string `json:"claimType"`
	IncidentDate string `json:"incidentDate"`
}

// EligibilityDecision is the transient outcome of an eligibility check.
// Eligible is true exactly when Reasons is empty. Reasons is never nil.
type EligibilityDecision struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// Eligible returns a passing decision with an empty, non-nil reasons list.
func Eligible() EligibilityDecision {
	return EligibilityDecision{Eligible: true, Reasons: []string{}}
}

// Ineligible returns a failing decision. With no reasons it still fails closed.
func Ineligible(reasons ...string) EligibilityDecision {
	out := make([]string, len(reasons))
	copy(out, reasons)
	return EligibilityDecision{Eligible: false, Reasons: out}
}
