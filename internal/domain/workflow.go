package domain

import "time"

// WorkflowStep is one stage of a workflow definition.
type WorkflowStep struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"` // TASK, AUTOMATION, APPROVAL
	AssigneeRole string `json:"assigneeRole,omitempty"`
}

// Workflow is a versioned workflow definition.
type Workflow struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"` // ISSUANCE, RENEWAL, ENDORSEMENT, CLAIM
	Name      string         `json:"name"`
	Active    bool           `json:"active"`
	Steps     []WorkflowStep `json:"steps"`
	Version   int            `json:"version"`
	SLAHours  int            `json:"slaHours"`
	CreatedBy string         `json:"createdBy,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// WorkflowPatch carries the mutable fields of a workflow. Nil fields are left unchanged.
type WorkflowPatch struct {
	Name   *string        `json:"name,omitempty"`
	Active *bool          `json:"active,omitempty"`
	Steps  []WorkflowStep `json:"steps,omitempty"`
}
