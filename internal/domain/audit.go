package domain

import "time"

// AuditEntry records one state-changing action.
type AuditEntry struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor,omitempty"`
	Action     string         `json:"action"`
	EntityType EntityType     `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
