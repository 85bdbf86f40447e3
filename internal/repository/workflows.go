package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
)

const workflowColumns = `id, template_key, name, active, steps, version, sla_hours, created_by, created_at, updated_at`

// SaveWorkflow inserts or updates a workflow definition.
func (r *SQLRepository) SaveWorkflow(ctx context.Context, w *domain.Workflow) error {
	steps := w.Steps
	if steps == nil {
		steps = []domain.WorkflowStep{}
	}
	encoded, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to encode workflow steps: %w", err)
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			steps = excluded.steps,
			version = excluded.version,
			sla_hours = excluded.sla_hours,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		w.ID, w.Key, w.Name, boolToInt(w.Active), string(encoded), w.Version, w.SLAHours,
		w.CreatedBy, fmtTime(w.CreatedAt), fmtTime(w.UpdatedAt),
	)
	return err
}

// GetWorkflow retrieves a workflow by id.
func (r *SQLRepository) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ?`
	w, err := scanWorkflow(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return w, err
}

// ListWorkflows retrieves every workflow, oldest first.
func (r *SQLRepository) ListWorkflows(ctx context.Context) ([]*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workflows := []*domain.Workflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// DeleteWorkflow removes a workflow.
func (r *SQLRepository) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM workflows WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return notFoundIfNoRows(result)
}

func scanWorkflow(row rowScanner) (*domain.Workflow, error) {
	var w domain.Workflow
	var active int
	var steps, createdAt, updatedAt string
	var createdBy sql.NullString
	if err := row.Scan(
		&w.ID, &w.Key, &w.Name, &active, &steps, &w.Version, &w.SLAHours,
		&createdBy, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	w.Active = active == 1
	w.CreatedBy = createdBy.String

	var err error
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &w.Steps); err != nil {
		return nil, fmt.Errorf("failed to parse steps for workflow %s: %w", w.ID, err)
	}
	return &w, nil
}
