package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

const slaColumns = `id, entity_type, entity_id, target_hours, created_at, completed_at, breached`

// SaveSLA stores a new SLA record.
func (r *SQLRepository) SaveSLA(ctx context.Context, rec *domain.SLARecord) error {
	if rec.TargetHours <= 0 {
		return fmt.Errorf("%w: target hours must be positive", domain.ErrInvalidInput)
	}
	query := `INSERT INTO sla_tracking (` + slaColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, string(rec.EntityType), rec.EntityID, rec.TargetHours,
		fmtTime(rec.CreatedAt), fmtNullTime(rec.CompletedAt), boolToInt(rec.Breached),
	)
	return err
}

// CompleteSLA stamps the completion time on the entity's open SLA record.
func (r *SQLRepository) CompleteSLA(ctx context.Context, entityType domain.EntityType, entityID string, completedAt time.Time) error {
	query := `
		UPDATE sla_tracking SET completed_at = ?
		WHERE entity_type = ? AND entity_id = ? AND completed_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, r.rebind(query), fmtTime(completedAt), string(entityType), entityID)
	if err != nil {
		return err
	}
	return notFoundIfNoRows(result)
}

// ListSLASince retrieves SLA records created at or after since.
func (r *SQLRepository) ListSLASince(ctx context.Context, since time.Time) ([]*domain.SLARecord, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_tracking WHERE created_at >= ? ORDER BY created_at`
	return r.querySLA(ctx, query, fmtTime(since))
}

// ListOpenSLA retrieves SLA records that are neither completed nor marked breached.
func (r *SQLRepository) ListOpenSLA(ctx context.Context) ([]*domain.SLARecord, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_tracking
		WHERE completed_at IS NULL AND breached = 0 ORDER BY created_at`
	return r.querySLA(ctx, query)
}

// MarkSLABreached sets the breach flag on the given records.
func (r *SQLRepository) MarkSLABreached(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.rebind(`UPDATE sla_tracking SET breached = 1 WHERE id = ?`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to mark sla %s breached: %w", id, err)
		}
	}
	return tx.Commit()
}

func (r *SQLRepository) querySLA(ctx context.Context, query string, args ...any) ([]*domain.SLARecord, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*domain.SLARecord{}
	for rows.Next() {
		var rec domain.SLARecord
		var entityType, createdAt string
		var completedAt sql.NullString
		var breached int
		if err := rows.Scan(
			&rec.ID, &entityType, &rec.EntityID, &rec.TargetHours,
			&createdAt, &completedAt, &breached,
		); err != nil {
			return nil, err
		}
		rec.EntityType = domain.EntityType(entityType)
		rec.Breached = breached == 1
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if rec.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
