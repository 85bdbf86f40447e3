package domain

import "time"

// EntityType names the kind of record an SLA or audit entry refers to.
type EntityType string

const (
	EntityPolicy EntityType = "policy"
	EntityClaim  EntityType = "claim"
)

// SLARecord tracks the completion target of one policy or claim.
type SLARecord struct {
	ID          string     `json:"id"`
	EntityType  EntityType `json:"entityType"`
	EntityID    string     `json:"entityId"`
	TargetHours int        `json:"targetHours"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Breached    bool       `json:"breached"`
}

// Deadline is the instant after which an open record is breached.
func (r *SLARecord) Deadline() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TargetHours) * time.Hour)
}

// IsBreached reports whether the record is open and strictly past its target at now.
func (r *SLARecord) IsBreached(now time.Time) bool {
	return r.CompletedAt == nil && now.Sub(r.CreatedAt) > time.Duration(r.TargetHours)*time.Hour
}

// SLASummary aggregates SLA records of one entity type.
type SLASummary struct {
	EntityType         EntityType `json:"entityType"`
	Total              int        `json:"total"`
	Breached           int        `json:"breached"`
	AtRisk             int        `json:"atRisk"`
	AvgCompletionHours *float64   `json:"avgCompletionHours"`
}
