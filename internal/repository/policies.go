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

const policyColumns = `id, policy_number, customer_id, type, status, coverage_amount, premium,
	coverage_start, coverage_end, covered_claim_types, max_claims_per_year, assigned_to,
	created_at, approved_at`

// SavePolicy inserts or replaces a policy.
func (r *SQLRepository) SavePolicy(ctx context.Context, p *domain.Policy) error {
	if p.ID == "" || p.PolicyNumber == "" {
		return fmt.Errorf("%w: policy id and number are required", domain.ErrInvalidInput)
	}
	if p.CoverageEnd.Before(p.CoverageStart) {
		return fmt.Errorf("%w: coverage end precedes coverage start", domain.ErrInvalidInput)
	}

	types := p.CoveredClaimTypes
	if types == nil {
		types = []string{}
	}
	coveredTypes, err := json.Marshal(types)
	if err != nil {
		return fmt.Errorf("failed to encode covered claim types: %w", err)
	}

	var maxClaims any
	if p.MaxClaimsPerYear != nil {
		maxClaims = *p.MaxClaimsPerYear
	}

	query := `
		INSERT INTO policies (` + policyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			policy_number = excluded.policy_number,
			customer_id = excluded.customer_id,
			type = excluded.type,
			status = excluded.status,
			coverage_amount = excluded.coverage_amount,
			premium = excluded.premium,
			coverage_start = excluded.coverage_start,
			coverage_end = excluded.coverage_end,
			covered_claim_types = excluded.covered_claim_types,
			max_claims_per_year = excluded.max_claims_per_year,
			assigned_to = excluded.assigned_to,
			approved_at = excluded.approved_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.PolicyNumber, p.CustomerID, p.Type, string(p.Status),
		p.CoverageAmount, p.Premium,
		fmtDate(p.CoverageStart), fmtDate(p.CoverageEnd),
		string(coveredTypes), maxClaims, p.AssignedTo,
		fmtTime(p.CreatedAt), fmtNullTime(p.ApprovedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: policy number %s is already in use", domain.ErrConflict, p.PolicyNumber)
	}
	return err
}

// GetPolicy retrieves a policy by id or exact policy number.
func (r *SQLRepository) GetPolicy(ctx context.Context, idOrNumber string) (*domain.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = ? OR policy_number = ?`
	p, err := scanPolicy(r.db.QueryRowContext(ctx, r.rebind(query), idOrNumber, idOrNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

// FindPolicy retrieves a policy by number, ignoring case.
func (r *SQLRepository) FindPolicy(ctx context.Context, policyNumber string) (*domain.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE LOWER(policy_number) = LOWER(?)`
	p, err := scanPolicy(r.db.QueryRowContext(ctx, r.rebind(query), policyNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

// ListPolicies retrieves policies matching the filter, newest first.
func (r *SQLRepository) ListPolicies(ctx context.Context, f domain.PolicyFilter) ([]*domain.Policy, error) {
	var conds []string
	var args []any
	if f.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		conds = append(conds, "LOWER(status) = ?")
		args = append(args, string(f.Status))
	}
	if f.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.ReviewerID != "" {
		conds = append(conds, "(LOWER(status) = 'pending' OR assigned_to = ?)")
		args = append(args, f.ReviewerID)
	}

	query := `SELECT ` + policyColumns + ` FROM policies` + whereClause(conds) + ` ORDER BY created_at DESC`
	return r.queryPolicies(ctx, query, args...)
}

// UpdatePolicyStatus sets the status and, when given, the approval time.
func (r *SQLRepository) UpdatePolicyStatus(ctx context.Context, id string, status domain.PolicyStatus, approvedAt *time.Time) error {
	query := `UPDATE policies SET status = ?, approved_at = COALESCE(?, approved_at) WHERE id = ?`
	result, err := r.db.ExecContext(ctx, r.rebind(query), string(status), fmtNullTime(approvedAt), id)
	if err != nil {
		return err
	}
	return notFoundIfNoRows(result)
}

// ListExpiringPolicies retrieves active policies whose coverage ends within [from, to].
func (r *SQLRepository) ListExpiringPolicies(ctx context.Context, from, to time.Time) ([]*domain.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies
		WHERE LOWER(status) = 'active' AND coverage_end >= ? AND coverage_end <= ?
		ORDER BY coverage_end`
	return r.queryPolicies(ctx, query, fmtDate(from), fmtDate(to))
}

func (r *SQLRepository) queryPolicies(ctx context.Context, query string, args ...any) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	policies := []*domain.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(row rowScanner) (*domain.Policy, error) {
	var p domain.Policy
	var status, start, end, coveredTypes, createdAt string
	var maxClaims sql.NullInt64
	var assignedTo, approvedAt sql.NullString

	if err := row.Scan(
		&p.ID, &p.PolicyNumber, &p.CustomerID, &p.Type, &status,
		&p.CoverageAmount, &p.Premium,
		&start, &end, &coveredTypes, &maxClaims, &assignedTo,
		&createdAt, &approvedAt,
	); err != nil {
		return nil, err
	}

	p.Status = domain.PolicyStatus(status)
	p.AssignedTo = assignedTo.String

	var err error
	if p.CoverageStart, err = parseDate(start); err != nil {
		return nil, err
	}
	if p.CoverageEnd, err = parseDate(end); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
		return nil, err
	}
	if maxClaims.Valid {
		n := int(maxClaims.Int64)
		p.MaxClaimsPerYear = &n
	}
	if err := json.Unmarshal([]byte(coveredTypes), &p.CoveredClaimTypes); err != nil {
		return nil, fmt.Errorf("failed to parse covered claim types for %s: %w", p.PolicyNumber, err)
	}
	if p.CoveredClaimTypes == nil {
		p.CoveredClaimTypes = []string{}
	}

	return &p, nil
}
