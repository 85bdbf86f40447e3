package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/opensource-finance/heron/internal/domain"
)

// SaveAudit appends an audit entry.
func (r *SQLRepository) SaveAudit(ctx context.Context, e *domain.AuditEntry) error {
	details, _ := json.Marshal(e.Details)

	query := `
		INSERT INTO audit_log (id, actor, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		e.ID, e.Actor, e.Action, string(e.EntityType), e.EntityID, string(details), fmtTime(e.CreatedAt),
	)
	return err
}

// ListAudit retrieves the most recent audit entries, newest first.
func (r *SQLRepository) ListAudit(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, actor, action, entity_type, entity_id, details, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		var actor, details sql.NullString
		var entityType, createdAt string
		if err := rows.Scan(&e.ID, &actor, &e.Action, &entityType, &e.EntityID, &details, &createdAt); err != nil {
			return nil, err
		}
		e.Actor = actor.String
		e.EntityType = domain.EntityType(entityType)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if details.String != "" {
			json.Unmarshal([]byte(details.String), &e.Details)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
