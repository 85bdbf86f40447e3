package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
)

// SaveUser inserts or updates a user.
func (r *SQLRepository) SaveUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" || u.Email == "" {
		return fmt.Errorf("%w: user id and email are required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO users (id, email, name, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			role = excluded.role
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		u.ID, u.Email, u.Name, string(u.Role), fmtTime(u.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s is already registered", domain.ErrConflict, u.Email)
	}
	return err
}

// GetUser retrieves a user by id.
func (r *SQLRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

// ListUsersByRole retrieves the holders of a role ordered by id.
func (r *SQLRepository) ListUsersByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE role = ? ORDER BY id`
	return r.queryUsers(ctx, query, string(role))
}

// ListUsers retrieves every user ordered by role, then id.
func (r *SQLRepository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users ORDER BY role, id`
	return r.queryUsers(ctx, query)
}

func (r *SQLRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &createdAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}
