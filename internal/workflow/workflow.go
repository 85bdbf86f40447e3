// Package workflow manages versioned workflow definitions cloned from preset templates.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/opensource-finance/heron/internal/domain"
)

// ErrUnknownTemplate is returned when cloning a key with no preset.
var ErrUnknownTemplate = fmt.Errorf("%w: unknown workflow template", domain.ErrInvalidInput)

// Service manages workflow definitions.
type Service struct {
	store domain.WorkflowStore
	now   func() time.Time
}

// NewService creates a workflow service.
func NewService(store domain.WorkflowStore) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Seed stores every preset that is not already present. It returns how many were added.
func (s *Service) Seed(ctx context.Context) (int, error) {
	added := 0
	now := s.now().UTC()
	for _, t := range Templates() {
		_, err := s.store.GetWorkflow(ctx, t.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return added, err
		}
		t.CreatedBy = "system"
		t.CreatedAt = now
		t.UpdatedAt = now
		if err := s.store.SaveWorkflow(ctx, t); err != nil {
			return added, fmt.Errorf("failed to seed workflow %s: %w", t.Key, err)
		}
		added++
	}
	return added, nil
}

// List returns every stored workflow.
func (s *Service) List(ctx context.Context) ([]*domain.Workflow, error) {
	return s.store.ListWorkflows(ctx)
}

// Get returns one workflow.
func (s *Service) Get(ctx context.Context, id string) (*domain.Workflow, error) {
	return s.store.GetWorkflow(ctx, id)
}

// CreateFromTemplate clones the preset for key as the next version. An empty name
// becomes "<template name without version> v<n>".
func (s *Service) CreateFromTemplate(ctx context.Context, key, name, createdBy string) (*domain.Workflow, error) {
	base := Template(strings.ToUpper(strings.TrimSpace(key)))
	if base == nil {
		return nil, ErrUnknownTemplate
	}

	version := base.Version + 1
	if name = strings.TrimSpace(name); name == "" {
		stem, _, _ := strings.Cut(base.Name, " v")
		name = fmt.Sprintf("%s v%d", stem, version)
	}

	steps := make([]domain.WorkflowStep, len(base.Steps))
	for i, step := range base.Steps {
		step.ID = fmt.Sprintf("s%d", i+1)
		steps[i] = step
	}

	now := s.now().UTC()
	w := &domain.Workflow{
		ID:        "wf-" + strings.ToLower(ulid.Make().String()),
		Key:       base.Key,
		Name:      name,
		Active:    base.Active,
		Steps:     steps,
		Version:   version,
		SLAHours:  base.SLAHours,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveWorkflow(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	slog.Info("workflow created", "workflow_id", w.ID, "key", w.Key, "version", w.Version)
	return w, nil
}

// Update applies patch and bumps the version.
func (s *Service) Update(ctx context.Context, id string, patch domain.WorkflowPatch) (*domain.Workflow, error) {
	w, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		w.Name = *patch.Name
	}
	if patch.Active != nil {
		w.Active = *patch.Active
	}
	if patch.Steps != nil {
		w.Steps = patch.Steps
	}
	w.Version++
	w.UpdatedAt = s.now().UTC()

	if err := s.store.SaveWorkflow(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}
	return w, nil
}

// Delete removes a workflow.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteWorkflow(ctx, id)
}
