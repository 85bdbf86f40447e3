package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// SaveFraudRule inserts or updates a fraud rule definition.
func (r *SQLRepository) SaveFraudRule(ctx context.Context, rule *domain.FraudRule) error {
	if rule.ID == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule id and expression are required", domain.ErrInvalidInput)
	}

	now := fmtTime(time.Now())
	query := `
		INSERT INTO fraud_rules (
			id, name, description, expression, points, reason, priority, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			points = excluded.points,
			reason = excluded.reason,
			priority = excluded.priority,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.Points, rule.Reason, rule.Priority, boolToInt(rule.Enabled),
		now, now,
	); err != nil {
		return fmt.Errorf("failed to save fraud rule %s: %w", rule.ID, err)
	}
	return nil
}

// ListFraudRules retrieves every fraud rule ordered by priority.
func (r *SQLRepository) ListFraudRules(ctx context.Context) ([]*domain.FraudRule, error) {
	query := `
		SELECT id, name, description, expression, points, reason, priority, enabled
		FROM fraud_rules
		ORDER BY priority, id
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud rules: %w", err)
	}
	defer rows.Close()

	rules := []*domain.FraudRule{}
	for rows.Next() {
		var rule domain.FraudRule
		var description sql.NullString
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Name, &description, &rule.Expression,
			&rule.Points, &rule.Reason, &rule.Priority, &enabled,
		); err != nil {
			return nil, err
		}
		rule.Description = description.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}
