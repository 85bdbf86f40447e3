package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/heron/internal/api"
	"github.com/opensource-finance/heron/internal/assignment"
	"github.com/opensource-finance/heron/internal/attachments"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/eligibility"
	"github.com/opensource-finance/heron/internal/fraud"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/policy"
	"github.com/opensource-finance/heron/internal/renewal"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/sla"
	"github.com/opensource-finance/heron/internal/triage"
	"github.com/opensource-finance/heron/internal/velocity"
	"github.com/opensource-finance/heron/internal/workflow"
)

// ruleWorkers bounds concurrent rule evaluation per claim.
const ruleWorkers = 100

// app holds every wired component for one process.
type app struct {
	cfg *domain.Config

	repo   *repository.SQLRepository
	cache  domain.Cache
	bus    domain.EventBus
	engine *rules.Engine
	scorer *fraud.Scorer

	tracker   *sla.Tracker
	notifier  *notify.Service
	renewals  *renewal.Service
	workflows *workflow.Service
	claims    *claims.Service
	policies  *policy.Service

	closers []func() error
}

// newApp opens the stores and builds the services. Rules are loaded from the
// repository, seeding the built-in set into an empty store.
func newApp(ctx context.Context, cfg *domain.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.repo, err = repository.New(cfg.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	a.closers = append(a.closers, a.repo.Close)
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	a.cache, err = cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.closers = append(a.closers, a.cache.Close)
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	a.bus, err = bus.New(cfg.EventBus)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	a.closers = append(a.closers, a.bus.Close)
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	files, err := attachments.New(ctx, cfg.Attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize attachment store: %w", err)
	}
	slog.Info("attachment store initialized", "backend", cfg.Attachments.Backend)

	a.engine, err = rules.NewEngine(velocity.NewService(a.repo).GetVelocityGetter(), ruleWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	a.closers = append(a.closers, a.engine.Close)

	count, err := fraud.SyncRules(ctx, a.repo, a.engine)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	slog.Info("rule engine initialized", "rules_count", count)

	processor := &triage.Processor{FlagThreshold: cfg.Claims.FlagThreshold}
	a.scorer = fraud.NewScorer(a.engine, processor, cfg.Claims.FraudWindow)

	policies := eligibility.NewCachedStore(a.repo, a.cache, cfg.Policies.CacheTTL)
	assigner := assignment.NewRoundRobin(a.repo, a.cache)
	a.tracker = sla.NewTracker(a.repo)
	a.notifier = notify.NewService(a.repo, a.bus)
	a.renewals = renewal.NewService(a.repo, a.repo, a.notifier, cfg.Renewals)
	a.workflows = workflow.NewService(a.repo)

	a.claims = claims.NewService(claims.Deps{
		Claims:      a.repo,
		Policies:    policies,
		Eligibility: eligibility.NewEvaluator(policies, eligibility.WithTimeout(cfg.Claims.EligibilityTimeout)),
		Scorer:      a.scorer,
		Assigner:    assigner,
		Attachments: files,
		Notifier:    a.notifier,
		SLA:         a.tracker,
		Bus:         a.bus,
	}, cfg.Claims)

	a.policies = policy.NewService(policy.Deps{
		Policies: a.repo,
		Assigner: assigner,
		Notifier: a.notifier,
		SLA:      a.tracker,
		Cache:    a.cache,
		Bus:      a.bus,
	}, cfg.Policies)

	return a, nil
}

func (a *app) services() api.Services {
	return api.Services{
		Repo:          a.repo,
		Cache:         a.cache,
		Bus:           a.bus,
		Claims:        a.claims,
		Policies:      a.policies,
		SLA:           a.tracker,
		Renewals:      a.renewals,
		Notifier:      a.notifier,
		Workflows:     a.workflows,
		Scorer:        a.scorer,
		MaxFormMemory: a.cfg.Claims.MaxFormMemory,
	}
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
