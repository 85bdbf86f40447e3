package rules

import "github.com/opensource-finance/heron/internal/domain"

// Built-in rule IDs.
const (
	RuleHighAmount       = "high-amount"
	RuleLowDocumentation = "low-documentation"
	RuleClaimFrequency   = "claim-frequency"
)

// BuiltinRules returns the default fraud rules. They are seeded into an empty rule store.
//
// The amount rule compares in whole cents: amount > 0.8 * coverage
// is evaluated as amount*10 > coverage*8 so the boundary is exact.
func BuiltinRules() []*domain.FraudRule {
	return []*domain.FraudRule{
		{
			ID:          RuleHighAmount,
			Name:        "High claim amount",
			Description: "Claim amount exceeds 80% of the policy coverage amount",
			Expression:  "amount_cents * 10 > coverage_cents * 8",
			Points:      30,
			Reason:      "Claim amount exceeds 80% of policy coverage.",
			Priority:    10,
			Enabled:     true,
		},
		{
			ID:          RuleLowDocumentation,
			Name:        "Insufficient documentation",
			Description: "Fewer than two supporting documents",
			Expression:  "document_count < 2",
			Points:      20,
			Reason:      "Fewer than 2 supporting documents provided.",
			Priority:    20,
			Enabled:     true,
		},
		{
			ID:          RuleClaimFrequency,
			Name:        "Claim frequency",
			Description: "Customer filed more than two claims in the trailing 90 days",
			Expression:  "recent_claim_count > 2",
			Points:      50,
			Reason:      "Customer filed more than 2 claims in the last 90 days.",
			Priority:    30,
			Enabled:     true,
		},
	}
}
