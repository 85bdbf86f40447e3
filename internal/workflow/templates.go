package workflow

import "github.com/opensource-finance/heron/internal/domain"

// Template keys.
const (
	KeyIssuance    = "ISSUANCE"
	KeyRenewal     = "RENEWAL"
	KeyEndorsement = "ENDORSEMENT"
	KeyClaim       = "CLAIM"
)

// Step types.
const (
	StepTask       = "TASK"
	StepAutomation = "AUTOMATION"
	StepApproval   = "APPROVAL"
)

// Templates returns fresh copies of the preset workflows.
func Templates() []*domain.Workflow {
	return []*domain.Workflow{
		{
			ID: "wf-issuance-1", Key: KeyIssuance, Name: "Policy Issuance v1", Active: true, Version: 1, SLAHours: 48,
			Steps: []domain.WorkflowStep{
				{ID: "s1", Name: "KYC Check", Type: StepAutomation},
				{ID: "s2", Name: "Underwriter Review", Type: StepApproval, AssigneeRole: "Underwriter"},
				{ID: "s3", Name: "Policy Generation", Type: StepAutomation},
				{ID: "s4", Name: "Operations Issue Policy", Type: StepTask, AssigneeRole: "Operations"},
			},
		},
		{
			ID: "wf-renewal-1", Key: KeyRenewal, Name: "Renewal v1", Active: true, Version: 1, SLAHours: 72,
			Steps: []domain.WorkflowStep{
				{ID: "s1", Name: "Reminder Notification", Type: StepAutomation},
				{ID: "s2", Name: "Payment Processing", Type: StepAutomation},
				{ID: "s3", Name: "Underwriter Exception Review", Type: StepApproval, AssigneeRole: "Underwriter"},
			},
		},
		{
			ID: "wf-endorsement-1", Key: KeyEndorsement, Name: "Endorsement v1", Active: true, Version: 1, SLAHours: 48,
			Steps: []domain.WorkflowStep{
				{ID: "s1", Name: "Change Request Intake", Type: StepTask, AssigneeRole: "Agent"},
				{ID: "s2", Name: "Underwriter Approval", Type: StepApproval, AssigneeRole: "Underwriter"},
				{ID: "s3", Name: "Policy Update", Type: StepAutomation},
			},
		},
		{
			ID: "wf-claim-1", Key: KeyClaim, Name: "Claims v1", Active: true, Version: 1, SLAHours: 72,
			Steps: []domain.WorkflowStep{
				{ID: "s1", Name: "FNOL Capture", Type: StepTask, AssigneeRole: "Claims"},
				{ID: "s2", Name: "Coverage Validation", Type: StepAutomation},
				{ID: "s3", Name: "Fraud Check", Type: StepAutomation},
				{ID: "s4", Name: "Adjuster Approval", Type: StepApproval, AssigneeRole: "Claims"},
				{ID: "s5", Name: "Settlement", Type: StepAutomation},
			},
		},
	}
}

// Template returns the preset with key, or nil.
func Template(key string) *domain.Workflow {
	for _, t := range Templates() {
		if t.Key == key {
			return t
		}
	}
	return nil
}
