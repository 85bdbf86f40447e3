package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/fraud"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Bool("demo", false, "Also create demo policies for the seeded customer")
}

// ─── seed ───────────────────────────────────────────────────────────────────

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed users, workflow templates and fraud rules",
	Long: `Create one user per role, store the workflow templates and load the built-in
fraud rules into an empty rule store. Seeding is idempotent: records are
keyed by fixed ids and existing workflow definitions are left alone.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	demo, _ := cmd.Flags().GetBool("demo")

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := seed(ctx, a, demo, time.Now().UTC())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Users:     %d\n", res.Users)
	fmt.Fprintf(out, "Workflows: %d added\n", res.Workflows)
	fmt.Fprintf(out, "Rules:     %d\n", res.Rules)
	if demo {
		fmt.Fprintf(out, "Policies:  %d\n", res.Policies)
	}
	return nil
}

type seedResult struct {
	Users     int
	Workflows int
	Rules     int
	Policies  int
}

// seedUserID is the fixed id of the seeded user holding role.
func seedUserID(role domain.Role) string {
	return "seed-" + string(role)
}

func seed(ctx context.Context, a *app, demo bool, now time.Time) (seedResult, error) {
	var res seedResult

	for _, role := range domain.Roles {
		u := &domain.User{
			ID:        seedUserID(role),
			Email:     string(role) + "@heron.local",
			Name:      "Demo " + string(role),
			Role:      role,
			CreatedAt: now,
		}
		if err := a.repo.SaveUser(ctx, u); err != nil {
			return res, fmt.Errorf("seed user %s: %w", role, err)
		}
		res.Users++
	}

	added, err := a.workflows.Seed(ctx)
	if err != nil {
		return res, fmt.Errorf("seed workflows: %w", err)
	}
	res.Workflows = added

	res.Rules, err = fraud.SyncRules(ctx, a.repo, a.engine)
	if err != nil {
		return res, fmt.Errorf("seed rules: %w", err)
	}

	if demo {
		for _, p := range demoPolicies(now) {
			if err := a.repo.SavePolicy(ctx, p); err != nil {
				return res, fmt.Errorf("seed policy %s: %w", p.PolicyNumber, err)
			}
			res.Policies++
		}
	}
	return res, nil
}

// demoPolicies covers each lifecycle state, with coverage dates relative to now.
func demoPolicies(now time.Time) []*domain.Policy {
	today := now.Truncate(24 * time.Hour)
	customer := seedUserID(domain.RoleCustomer)
	underwriter := seedUserID(domain.RoleUnderwriter)
	approved := today.AddDate(0, 0, -40)

	mk := func(n int, typ string, status domain.PolicyStatus, coverage, premium int64, startDays, endDays int) *domain.Policy {
		number := fmt.Sprintf("POL-DEMO%03d", n)
		p := &domain.Policy{
			ID:             "seed-" + number,
			PolicyNumber:   number,
			CustomerID:     customer,
			Type:           typ,
			Status:         status,
			CoverageAmount: decimal.NewFromInt(coverage),
			Premium:        decimal.NewFromInt(premium),
			CoverageStart:  today.AddDate(0, 0, startDays),
			CoverageEnd:    today.AddDate(0, 0, endDays),
			AssignedTo:     underwriter,
			CreatedAt:      today.AddDate(0, 0, startDays-5),
		}
		if status != domain.PolicyPending {
			p.ApprovedAt = &approved
		}
		return p
	}

	return []*domain.Policy{
		mk(1, "auto", domain.PolicyActive, 50000, 1200, -35, 330),
		mk(2, "home", domain.PolicyActive, 250000, 1800, -20, 345),
		mk(3, "health", domain.PolicyActive, 100000, 2400, -340, 25),
		mk(4, "life", domain.PolicyPending, 500000, 3600, 10, 375),
		mk(5, "auto", domain.PolicyExpired, 40000, 1000, -400, -35),
	}
}
