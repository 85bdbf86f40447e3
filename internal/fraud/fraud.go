// Package fraud scores submitted claims. It feeds claim attributes and the customer's
// trailing claim count through the rule engine and aggregates the result.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/triage"
	"github.com/shopspring/decimal"
)

// ErrRuleFailed is returned when any loaded rule errors during evaluation.
var ErrRuleFailed = errors.New("fraud rule evaluation failed")

// DefaultWindow is the trailing window for the customer claim count.
const DefaultWindow = 90 * 24 * time.Hour

// Input is one claim to score.
type Input struct {
	ClaimNumber   string
	CustomerID    string
	ClaimType     string
	Amount        decimal.Decimal
	Coverage      decimal.Decimal
	DocumentCount int

	// RecentClaimCount is used as given when set; otherwise it is looked up for CustomerID.
	RecentClaimCount *int64
}

// Validate requires both amounts to satisfy domain.ValidAmount and the counts to be non-negative.
func (in Input) Validate() error {
	if !domain.ValidAmount(in.Amount) {
		return fmt.Errorf("%w: claim amount must be positive whole cents up to %s", domain.ErrInvalidInput, domain.MaxAmount)
	}
	if !domain.ValidAmount(in.Coverage) {
		return fmt.Errorf("%w: coverage amount must be positive whole cents up to %s", domain.ErrInvalidInput, domain.MaxAmount)
	}
	if in.DocumentCount < 0 {
		return fmt.Errorf("%w: document count must not be negative", domain.ErrInvalidInput)
	}
	if in.RecentClaimCount != nil && *in.RecentClaimCount < 0 {
		return fmt.Errorf("%w: recent claim count must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// InputFromFloats builds an Input from float amounts, rejecting NaN and infinities.
func InputFromFloats(amount, coverage float64, documents int, recent int64) (Input, error) {
	for _, v := range []float64{amount, coverage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Input{}, fmt.Errorf("%w: amounts must be finite", domain.ErrInvalidInput)
		}
	}
	in := Input{
		Amount:           decimal.NewFromFloat(amount),
		Coverage:         decimal.NewFromFloat(coverage),
		DocumentCount:    documents,
		RecentClaimCount: &recent,
	}
	return in, in.Validate()
}

// ToCents rounds a money amount half away from zero to whole cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// Scorer computes fraud assessments.
type Scorer struct {
	engine    *rules.Engine
	processor *triage.Processor
	window    time.Duration
}

// NewScorer creates a scorer. A zero window uses DefaultWindow.
func NewScorer(engine *rules.Engine, processor *triage.Processor, window time.Duration) *Scorer {
	if window <= 0 {
		window = DefaultWindow
	}
	if processor == nil {
		processor = triage.NewProcessor()
	}
	return &Scorer{engine: engine, processor: processor, window: window}
}

// NewDefaultScorer returns a scorer running only the built-in rules.
func NewDefaultScorer(getter rules.VelocityGetter) (*Scorer, error) {
	engine, err := rules.NewEngine(getter, 0)
	if err != nil {
		return nil, err
	}
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		return nil, err
	}
	return NewScorer(engine, triage.NewProcessor(), DefaultWindow), nil
}

// Engine exposes the underlying rule engine for administration.
func (s *Scorer) Engine() *rules.Engine {
	return s.engine
}

// Window returns the trailing window used for the customer claim count.
func (s *Scorer) Window() time.Duration {
	return s.window
}

// Assess scores a claim. Given the same input and rules the result is always the same.
func (s *Scorer) Assess(ctx context.Context, in Input) (*domain.FraudAssessment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	results, recent, err := s.engine.EvaluateAll(ctx, &rules.EvaluateInput{
		ClaimNumber:      in.ClaimNumber,
		CustomerID:       in.CustomerID,
		ClaimType:        in.ClaimType,
		AmountCents:      ToCents(in.Amount),
		CoverageCents:    ToCents(in.Coverage),
		DocumentCount:    int64(in.DocumentCount),
		RecentClaimCount: in.RecentClaimCount,
		VelocityWindow:   s.window,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate fraud rules: %w", err)
	}
	for _, r := range results {
		if r.Outcome == domain.RuleOutcomeError {
			return nil, fmt.Errorf("%w: rule %s: %s", ErrRuleFailed, r.RuleID, r.Reason)
		}
	}

	return s.processor.Process(ctx, &triage.DecisionInput{
		ClaimNumber:      in.ClaimNumber,
		RuleResults:      results,
		RecentClaimCount: recent,
	}), nil
}

// Score is the in-process call taking (claimAmount, coverageAmount, documentCount,
// recentClaimCount).
func (s *Scorer) Score(ctx context.Context, amount, coverage decimal.Decimal, documents int, recent int64) (*domain.FraudAssessment, error) {
	return s.Assess(ctx, Input{
		Amount:           amount,
		Coverage:         coverage,
		DocumentCount:    documents,
		RecentClaimCount: &recent,
	})
}

// SyncRules loads the rule store into engine. An empty store is first seeded with
// the built-in rules. It returns the number of stored rules.
func SyncRules(ctx context.Context, store domain.RuleStore, engine *rules.Engine) (int, error) {
	stored, err := store.ListFraudRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list fraud rules: %w", err)
	}

	if len(stored) == 0 {
		stored = rules.BuiltinRules()
		for _, r := range stored {
			if err := store.SaveFraudRule(ctx, r); err != nil {
				return 0, fmt.Errorf("failed to seed fraud rule %s: %w", r.ID, err)
			}
		}
		slog.Info("seeded built-in fraud rules", "count", len(stored))
	}

	if err := engine.ReloadRules(stored); err != nil {
		return 0, fmt.Errorf("failed to load fraud rules: %w", err)
	}

	slog.Info("fraud rules loaded", "count", engine.RulesCount())
	return len(stored), nil
}
