package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
)

// SaveRenewal stores a renewal reminder schedule.
func (r *SQLRepository) SaveRenewal(ctx context.Context, rec *domain.RenewalRecord) error {
	leadTimes, err := json.Marshal(rec.LeadTimes)
	if err != nil {
		return fmt.Errorf("failed to encode lead times: %w", err)
	}
	reminders, err := json.Marshal(rec.Reminders)
	if err != nil {
		return fmt.Errorf("failed to encode reminders: %w", err)
	}

	query := `
		INSERT INTO renewal_reminders (
			id, policy_number, customer_name, customer_email, contact_phone,
			expiry_date, lead_times, reminders, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.PolicyNumber, rec.CustomerName, rec.CustomerEmail, rec.ContactPhone,
		fmtTime(rec.ExpiryDate), string(leadTimes), string(reminders), fmtTime(rec.CreatedAt),
	)
	return err
}

// ListRenewals retrieves every renewal schedule ordered by expiry date.
func (r *SQLRepository) ListRenewals(ctx context.Context) ([]*domain.RenewalRecord, error) {
	query := `
		SELECT id, policy_number, customer_name, customer_email, contact_phone,
			   expiry_date, lead_times, reminders, created_at
		FROM renewal_reminders
		ORDER BY expiry_date, created_at
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*domain.RenewalRecord{}
	for rows.Next() {
		var rec domain.RenewalRecord
		var phone sql.NullString
		var expiry, leadTimes, reminders, createdAt string
		if err := rows.Scan(
			&rec.ID, &rec.PolicyNumber, &rec.CustomerName, &rec.CustomerEmail, &phone,
			&expiry, &leadTimes, &reminders, &createdAt,
		); err != nil {
			return nil, err
		}
		rec.ContactPhone = phone.String
		if rec.ExpiryDate, err = parseTime(expiry); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(leadTimes), &rec.LeadTimes); err != nil {
			return nil, fmt.Errorf("failed to parse lead times for %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(reminders), &rec.Reminders); err != nil {
			return nil, fmt.Errorf("failed to parse reminders for %s: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
