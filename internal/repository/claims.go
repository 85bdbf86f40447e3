package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

const claimColumns = `id, claim_number, policy_id, policy_number, customer_id, type,
	claimant_name, claimant_email, incident_date, incident_time, incident_location,
	description, additional_notes, amount, document_count, attachments, status,
	fraud_score, flagged, assigned_to, created_at, resolved_at`

// SaveClaim inserts a new claim. Claim numbers are unique.
func (r *SQLRepository) SaveClaim(ctx context.Context, c *domain.Claim) error {
	if c.ID == "" || c.ClaimNumber == "" {
		return fmt.Errorf("%w: claim id and number are required", domain.ErrInvalidInput)
	}

	attachments := c.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}

	query := `
		INSERT INTO claims (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.ClaimNumber, c.PolicyID, c.PolicyNumber, c.CustomerID, c.Type,
		c.ClaimantName, c.ClaimantEmail, c.IncidentDate, c.IncidentTime, c.IncidentLocation,
		c.Description, c.AdditionalNotes, c.Amount, c.DocumentCount, string(encoded),
		string(c.Status), c.FraudScore, boolToInt(c.Flagged), c.AssignedTo,
		fmtTime(c.CreatedAt), fmtNullTime(c.ResolvedAt),
	)
	return err
}

// GetClaim retrieves a claim by id or claim number.
func (r *SQLRepository) GetClaim(ctx context.Context, idOrNumber string) (*domain.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ? OR claim_number = ?`
	c, err := scanClaim(r.db.QueryRowContext(ctx, r.rebind(query), idOrNumber, idOrNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// FindClaimsByPolicyAndType retrieves claims on a policy of the same type submitted after since.
// Policy number and claim type match without regard to case.
func (r *SQLRepository) FindClaimsByPolicyAndType(ctx context.Context, policyNumber, claimType string, since time.Time) ([]*domain.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims
		WHERE LOWER(policy_number) = LOWER(?) AND LOWER(type) = LOWER(?) AND created_at > ?
		ORDER BY created_at DESC`
	return r.queryClaims(ctx, query, policyNumber, claimType, fmtTime(since))
}

// CountClaimsByCustomer counts a customer's claims submitted after since, in any status.
func (r *SQLRepository) CountClaimsByCustomer(ctx context.Context, customerID string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM claims WHERE customer_id = ? AND created_at > ?`
	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), customerID, fmtTime(since)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListClaims retrieves claims matching the filter, newest first.
func (r *SQLRepository) ListClaims(ctx context.Context, f domain.ClaimFilter) ([]*domain.Claim, error) {
	var conds []string
	var args []any
	if f.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + claimColumns + ` FROM claims` + whereClause(conds) + ` ORDER BY created_at DESC`
	return r.queryClaims(ctx, query, args...)
}

// UpdateClaimStatus sets the status and, when given, the resolution time.
func (r *SQLRepository) UpdateClaimStatus(ctx context.Context, id string, status domain.ClaimStatus, resolvedAt *time.Time) error {
	query := `UPDATE claims SET status = ?, resolved_at = COALESCE(?, resolved_at) WHERE id = ?`
	result, err := r.db.ExecContext(ctx, r.rebind(query), string(status), fmtNullTime(resolvedAt), id)
	if err != nil {
		return err
	}
	return notFoundIfNoRows(result)
}

func (r *SQLRepository) queryClaims(ctx context.Context, query string, args ...any) ([]*domain.Claim, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := []*domain.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func scanClaim(row rowScanner) (*domain.Claim, error) {
	var c domain.Claim
	var status, attachments, createdAt string
	var notes, assignedTo, resolvedAt sql.NullString
	var flagged int

	if err := row.Scan(
		&c.ID, &c.ClaimNumber, &c.PolicyID, &c.PolicyNumber, &c.CustomerID, &c.Type,
		&c.ClaimantName, &c.ClaimantEmail, &c.IncidentDate, &c.IncidentTime, &c.IncidentLocation,
		&c.Description, &notes, &c.Amount, &c.DocumentCount, &attachments, &status,
		&c.FraudScore, &flagged, &assignedTo, &createdAt, &resolvedAt,
	); err != nil {
		return nil, err
	}

	c.Status = domain.ClaimStatus(status)
	c.Flagged = flagged == 1
	c.AdditionalNotes = notes.String
	c.AssignedTo = assignedTo.String

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &c.Attachments); err != nil {
		return nil, fmt.Errorf("failed to parse attachments for %s: %w", c.ClaimNumber, err)
	}

	return &c, nil
}
