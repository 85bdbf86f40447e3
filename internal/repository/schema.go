package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL. Timestamps are stored as fixed-width
// UTC text and money as decimal text so both drivers round-trip them identically.

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    policy_number TEXT NOT NULL UNIQUE,
    customer_id TEXT NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    coverage_amount TEXT NOT NULL,
    premium TEXT NOT NULL,
    coverage_start TEXT NOT NULL,
    coverage_end TEXT NOT NULL,
    covered_claim_types TEXT NOT NULL,
    max_claims_per_year INTEGER,
    assigned_to TEXT,
    created_at TEXT NOT NULL,
    approved_at TEXT
);

DROP INDEX IF EXISTS idx_policies_number;
CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_number_ci ON policies(LOWER(policy_number));
CREATE INDEX IF NOT EXISTS idx_policies_customer ON policies(customer_id);
CREATE INDEX IF NOT EXISTS idx_policies_status_end ON policies(status, coverage_end);
`

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    claim_number TEXT NOT NULL UNIQUE,
    policy_id TEXT NOT NULL,
    policy_number TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    type TEXT NOT NULL,
    claimant_name TEXT NOT NULL,
    claimant_email TEXT NOT NULL,
    incident_date TEXT NOT NULL,
    incident_time TEXT NOT NULL,
    incident_location TEXT NOT NULL,
    description TEXT NOT NULL,
    additional_notes TEXT,
    amount TEXT NOT NULL,
    document_count INTEGER NOT NULL DEFAULT 0,
    attachments TEXT NOT NULL,
    status TEXT NOT NULL,
    fraud_score INTEGER NOT NULL DEFAULT 0,
    flagged INTEGER NOT NULL DEFAULT 0,
    assigned_to TEXT,
    created_at TEXT NOT NULL,
    resolved_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_claims_policy_type ON claims(LOWER(policy_number), LOWER(type), created_at);
CREATE INDEX IF NOT EXISTS idx_claims_customer ON claims(customer_id, created_at);
CREATE INDEX IF NOT EXISTS idx_claims_assigned ON claims(assigned_to);
`

const schemaNotifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    type TEXT NOT NULL,
    read INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
`

const schemaSLA = `
CREATE TABLE IF NOT EXISTS sla_tracking (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    target_hours INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    completed_at TEXT,
    breached INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sla_entity ON sla_tracking(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_sla_created ON sla_tracking(created_at);
`

const schemaRenewals = `
CREATE TABLE IF NOT EXISTS renewal_reminders (
    id TEXT PRIMARY KEY,
    policy_number TEXT NOT NULL,
    customer_name TEXT NOT NULL,
    customer_email TEXT NOT NULL,
    contact_phone TEXT,
    expiry_date TEXT NOT NULL,
    lead_times TEXT NOT NULL,
    reminders TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_renewals_expiry ON renewal_reminders(expiry_date);
`

const schemaWorkflows = `
CREATE TABLE IF NOT EXISTS workflows (
    id TEXT PRIMARY KEY,
    template_key TEXT NOT NULL,
    name TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    steps TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    sla_hours INTEGER NOT NULL DEFAULT 0,
    created_by TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

const schemaAudit = `
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    actor TEXT,
    action TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    details TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);
`

const schemaFraudRules = `
CREATE TABLE IF NOT EXISTS fraud_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    points INTEGER NOT NULL,
    reason TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaUsers,
		schemaPolicies,
		schemaClaims,
		schemaNotifications,
		schemaSLA,
		schemaRenewals,
		schemaWorkflows,
		schemaAudit,
		schemaFraudRules,
	}
}
