// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// PolicyFilter narrows ListPolicies. Empty fields are ignored; ReviewerID matches
// policies that are pending or assigned to that reviewer.
type PolicyFilter struct {
	CustomerID string
	Status     PolicyStatus
	AssignedTo string
	ReviewerID string
}

// ClaimFilter narrows ListClaims. Empty fields are ignored.
type ClaimFilter struct {
	CustomerID string
	AssignedTo string
	Status     ClaimStatus
}

// PolicyStore persists policies.
type PolicyStore interface {
	SavePolicy(ctx context.Context, p *Policy) error
	// GetPolicy looks a policy up by id or policy number.
	GetPolicy(ctx context.Context, idOrNumber string) (*Policy, error)
	// FindPolicy matches the policy number without regard to case.
	FindPolicy(ctx context.Context, policyNumber string) (*Policy, error)
	ListPolicies(ctx context.Context, f PolicyFilter) ([]*Policy, error)
	UpdatePolicyStatus(ctx context.Context, id string, status PolicyStatus, approvedAt *time.Time) error
	// ListExpiringPolicies returns active policies whose coverage ends in [from, to].
	ListExpiringPolicies(ctx context.Context, from, to time.Time) ([]*Policy, error)
}

// ClaimStore persists claims.
type ClaimStore interface {
	SaveClaim(ctx context.Context, c *Claim) error
	// GetClaim looks a claim up by id or claim number.
	GetClaim(ctx context.Context, idOrNumber string) (*Claim, error)
	// FindClaimsByPolicyAndType returns claims on the policy with the same type (case-insensitive)
	// created strictly after since.
	FindClaimsByPolicyAndType(ctx context.Context, policyNumber, claimType string, since time.Time) ([]*Claim, error)
	// CountClaimsByCustomer counts the customer's claims created strictly after since, in any status.
	CountClaimsByCustomer(ctx context.Context, customerID string, since time.Time) (int64, error)
	ListClaims(ctx context.Context, f ClaimFilter) ([]*Claim, error)
	UpdateClaimStatus(ctx context.Context, id string, status ClaimStatus, resolvedAt *time.Time) error
}

// UserStore persists portal users.
type UserStore interface {
	SaveUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	// ListUsersByRole returns holders of role ordered by id.
	ListUsersByRole(ctx context.Context, role Role) ([]*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	// HasRecentNotification reports whether userID received a notification of type whose
	// message contains fragment, created at or after since.
	HasRecentNotification(ctx context.Context, userID, typ, fragment string, since time.Time) (bool, error)
}

// SLAStore persists SLA tracking records.
type SLAStore interface {
	SaveSLA(ctx context.Context, r *SLARecord) error
	// CompleteSLA stamps completedAt on the open record for the entity.
	CompleteSLA(ctx context.Context, entityType EntityType, entityID string, completedAt time.Time) error
	ListSLASince(ctx context.Context, since time.Time) ([]*SLARecord, error)
	ListOpenSLA(ctx context.Context) ([]*SLARecord, error)
	MarkSLABreached(ctx context.Context, ids []string) error
}

// RenewalStore persists renewal reminder schedules.
type RenewalStore interface {
	SaveRenewal(ctx context.Context, r *RenewalRecord) error
	ListRenewals(ctx context.Context) ([]*RenewalRecord, error)
}

// WorkflowStore persists workflow definitions.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, w *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// AuditStore persists the audit trail.
type AuditStore interface {
	SaveAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error)
}

// RuleStore persists fraud rule definitions.
type RuleStore interface {
	SaveFraudRule(ctx context.Context, r *FraudRule) error
	ListFraudRules(ctx context.Context) ([]*FraudRule, error)
}

// Repository is the complete data persistence interface.
type Repository interface {
	PolicyStore
	ClaimStore
	UserStore
	NotificationStore
	SLAStore
	RenewalStore
	WorkflowStore
	AuditStore
	RuleStore

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `toml:"driver"`

	// SQLite specific
	SQLitePath string `toml:"sqlite_path" envconfig:"SQLITE_PATH"`

	// PostgreSQL specific
	PostgresHost     string `toml:"postgres_host" split_words:"true"`
	PostgresPort     int    `toml:"postgres_port" split_words:"true"`
	PostgresUser     string `toml:"postgres_user" split_words:"true"`
	PostgresPassword string `toml:"postgres_password" split_words:"true"`
	PostgresDB       string `toml:"postgres_db" envconfig:"POSTGRES_DB"`
	PostgresSSLMode  string `toml:"postgres_sslmode" envconfig:"POSTGRES_SSLMODE"`

	// Connection pool settings
	MaxOpenConns    int           `toml:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `toml:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" split_words:"true"`
}
