package domain

// FraudRule defines one additive component of the fraud score.
type FraudRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression evaluated against the claim. A bool result awards Points when true;
	// an int result is taken as the points awarded.
	Expression string `json:"expression"`

	// Points awarded when the expression holds.
	Points int `json:"points"`

	// Reason reported when the rule fires.
	Reason string `json:"reason"`

	// Priority orders rule results; lower first.
	Priority int `json:"priority"`

	Enabled bool `json:"enabled"`
}

// RuleResult is the output of one rule evaluation.
type RuleResult struct {
	RuleID    string `json:"ruleId"`
	Outcome   string `json:"outcome"` // ".pass", ".fail", ".err"
	Points    int    `json:"points"`
	Reason    string `json:"reason,omitempty"`
	ProcessMs int64  `json:"processMs"`
}

// Rule outcomes. A rule that fires is a ".fail" for the claim.
const (
	RuleOutcomePass  = ".pass"
	RuleOutcomeFail  = ".fail"
	RuleOutcomeError = ".err"
)

// FraudAssessment is the final fraud decision for a claim.
type FraudAssessment struct {
	Score            int          `json:"score"`
	Flagged          bool         `json:"flagged"`
	Route            Role         `json:"route"`
	Reasons          []string     `json:"reasons"`
	RecentClaimCount int64        `json:"recentClaimCount"`
	RuleResults      []RuleResult `json:"ruleResults"`
}
