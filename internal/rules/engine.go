// Package rules compiles fraud rules written in CEL and evaluates them against claims.
package rules

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/heron/internal/domain"
)

// Engine holds the compiled rule set. Evaluation reads an immutable snapshot,
// so rules can be reloaded while claims are being scored.
type Engine struct {
	env      *cel.Env
	velocity VelocityGetter
	workers  int

	mu    sync.RWMutex
	rules []*CompiledRule // ordered by priority, then id
}

// CompiledRule pairs a rule with its checked CEL program.
type CompiledRule struct {
	Config  *domain.FraudRule
	Program cel.Program
}

// VelocityGetter returns the number of claims a customer filed within the trailing window.
type VelocityGetter func(ctx context.Context, customerID string, window time.Duration) (int64, error)

// NewEngine declares the claim variables rules may reference. workers bounds
// how many rules evaluate at once; zero means 10.
func NewEngine(velocity VelocityGetter, workers int) (*Engine, error) {
	if workers <= 0 {
		workers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount_cents", cel.IntType),
		cel.Variable("coverage_cents", cel.IntType),
		cel.Variable("document_count", cel.IntType),
		cel.Variable("recent_claim_count", cel.IntType),
		cel.Variable("claim_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Engine{env: env, velocity: velocity, workers: workers}, nil
}

func byPriority(a, b *CompiledRule) int {
	if c := cmp.Compare(a.Config.Priority, b.Config.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.Config.ID, b.Config.ID)
}

// ValidateRule reports whether rule compiles, without loading it.
func (e *Engine) ValidateRule(rule *domain.FraudRule) error {
	if rule == nil {
		return errors.New("rule is required")
	}
	_, err := e.compile(rule)
	return err
}

// LoadRule compiles rule and adds it, replacing any loaded rule with the same id.
func (e *Engine) LoadRule(rule *domain.FraudRule) error {
	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(e.rules), func(r *CompiledRule) bool {
		return r.Config.ID == rule.ID
	})
	next = append(next, compiled)
	slices.SortFunc(next, byPriority)
	e.rules = next
	return nil
}

// LoadRules adds the enabled rules, stopping at the first that fails to compile.
func (e *Engine) LoadRules(rules []*domain.FraudRule) error {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if err := e.LoadRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// ReloadRules swaps in the enabled rules. If any fails to compile the loaded set is unchanged.
func (e *Engine) ReloadRules(rules []*domain.FraudRule) error {
	next := make([]*CompiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compile(rule)
		if err != nil {
			return err
		}
		next = append(next, compiled)
	}
	slices.SortFunc(next, byPriority)

	e.mu.Lock()
	e.rules = next
	e.mu.Unlock()
	return nil
}

func (e *Engine) snapshot() []*CompiledRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	return len(e.snapshot())
}

// GetLoadedRules returns the loaded rules ordered by priority.
func (e *Engine) GetLoadedRules() []*domain.FraudRule {
	loaded := e.snapshot()
	out := make([]*domain.FraudRule, len(loaded))
	for i, r := range loaded {
		out[i] = r.Config
	}
	return out
}

// Close unloads every rule.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.rules = nil
	e.mu.Unlock()
	return nil
}

// EvaluateInput holds the claim attributes exposed to rule expressions.
type EvaluateInput struct {
	ClaimNumber   string
	CustomerID    string
	ClaimType     string
	AmountCents   int64
	CoverageCents int64
	DocumentCount int64

	// RecentClaimCount is used as given when set. Otherwise it is fetched through the
	// velocity getter over VelocityWindow.
	RecentClaimCount *int64
	VelocityWindow   time.Duration
}

// EvaluateAll runs every loaded rule against input and returns one result per
// rule in priority order, along with the recent claim count the rules saw.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.RuleResult, int64, error) {
	loaded := e.snapshot()

	recent, err := e.recentClaims(ctx, input)
	if err != nil {
		return nil, 0, err
	}
	results := make([]domain.RuleResult, len(loaded))
	if len(loaded) == 0 {
		return results, recent, nil
	}

	vars := activation(input, recent)
	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(e.workers, len(loaded)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				results[i] = evaluate(loaded[i], vars)
			}
		}()
	}

feed:
	for i := range loaded {
		select {
		case next <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(next)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, recent, fmt.Errorf("rule evaluation interrupted: %w", err)
	}
	return results, recent, nil
}

func (e *Engine) recentClaims(ctx context.Context, input *EvaluateInput) (int64, error) {
	if input.RecentClaimCount != nil {
		return *input.RecentClaimCount, nil
	}
	if e.velocity == nil || input.VelocityWindow <= 0 || input.CustomerID == "" {
		return 0, nil
	}
	n, err := e.velocity(ctx, input.CustomerID, input.VelocityWindow)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent claims: %w", err)
	}
	return n, nil
}

// activation binds the declared variables. The claim map mirrors the top-level
// values for rules that prefer claim.field access.
func activation(input *EvaluateInput, recent int64) map[string]any {
	return map[string]any{
		"claim": map[string]any{
			"number":         input.ClaimNumber,
			"customer_id":    input.CustomerID,
			"type":           input.ClaimType,
			"amount_cents":   input.AmountCents,
			"coverage_cents": input.CoverageCents,
			"document_count": input.DocumentCount,
		},
		"amount_cents":       input.AmountCents,
		"coverage_cents":     input.CoverageCents,
		"document_count":     input.DocumentCount,
		"recent_claim_count": recent,
		"claim_type":         input.ClaimType,
	}
}

// evaluate runs one rule. A runtime error yields an error outcome worth no points.
func evaluate(rule *CompiledRule, vars map[string]any) domain.RuleResult {
	start := time.Now()
	result := domain.RuleResult{RuleID: rule.Config.ID, Outcome: domain.RuleOutcomePass}

	out, _, err := rule.Program.Eval(vars)
	switch {
	case err != nil:
		result.Outcome = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
	default:
		if points := toPoints(out, rule.Config.Points); points > 0 {
			result.Outcome = domain.RuleOutcomeFail
			result.Points = points
			result.Reason = rule.Config.Reason
		}
	}
	result.ProcessMs = time.Since(start).Milliseconds()
	return result
}

// toPoints converts a rule's value to awarded points. A true bool awards the
// configured points; a number is the points itself.
func toPoints(val ref.Val, configured int) int {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return configured
		}
	case types.Int:
		return int(v)
	case types.Double:
		return int(math.Round(float64(v)))
	}
	return 0
}

func (e *Engine) compile(rule *domain.FraudRule) (*CompiledRule, error) {
	switch {
	case rule.ID == "":
		return nil, errors.New("rule id is required")
	case rule.Points < 0:
		return nil, fmt.Errorf("rule %s: points must not be negative", rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if err := issues.Err(); err != nil {
		return nil, fmt.Errorf("rule %s does not compile: %w", rule.ID, err)
	}
	if out := ast.OutputType(); out != cel.BoolType && out != cel.IntType && out != cel.DoubleType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", rule.ID, out)
	}

	program, err := e.env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("rule %s: failed to build program: %w", rule.ID, err)
	}
	return &CompiledRule{Config: rule, Program: program}, nil
}
