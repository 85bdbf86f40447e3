// Package triage aggregates fraud rule results into a claim's score, flag and route.
package triage

import (
	"context"

	"github.com/opensource-finance/heron/internal/domain"
)

// DefaultFlagThreshold is the score at or above which a claim is flagged.
const DefaultFlagThreshold = 50

// Processor aggregates rule results and produces a fraud assessment.
type Processor struct {
	// FlagThreshold is the inclusive score at which a claim is flagged and routed to an analyst.
	FlagThreshold int
}

// NewProcessor creates a processor with the default threshold.
func NewProcessor() *Processor {
	return &Processor{FlagThreshold: DefaultFlagThreshold}
}

// DecisionInput contains all data needed for an assessment.
type DecisionInput struct {
	ClaimNumber      string
	RuleResults      []domain.RuleResult
	RecentClaimCount int64
}

// Process sums the points awarded by each rule. Errored rules award nothing.
func (p *Processor) Process(ctx context.Context, input *DecisionInput) *domain.FraudAssessment {
	results := input.RuleResults
	if results == nil {
		results = []domain.RuleResult{}
	}

	score := Aggregate(results)
	flagged := p.ShouldFlag(score)

	route := domain.RoleAdjuster
	if flagged {
		route = domain.RoleAnalyst
	}

	return &domain.FraudAssessment{
		Score:            score,
		Flagged:          flagged,
		Route:            route,
		Reasons:          GetReasons(results),
		RecentClaimCount: input.RecentClaimCount,
		RuleResults:      results,
	}
}

// ShouldFlag reports whether score reaches the flag threshold.
func (p *Processor) ShouldFlag(score int) bool {
	threshold := p.FlagThreshold
	if threshold <= 0 {
		threshold = DefaultFlagThreshold
	}
	return score >= threshold
}

// Aggregate returns the additive score of the fired rules. It is never negative.
func Aggregate(results []domain.RuleResult) int {
	score := 0
	for _, r := range results {
		if r.Outcome == domain.RuleOutcomeFail && r.Points > 0 {
			score += r.Points
		}
	}
	return score
}

// GetReasons extracts the reasons of fired rules in result order.
func GetReasons(results []domain.RuleResult) []string {
	reasons := []string{}
	for _, r := range results {
		if r.Outcome == domain.RuleOutcomeFail && r.Reason != "" {
			reasons = append(reasons, r.Reason)
		}
	}
	return reasons
}
