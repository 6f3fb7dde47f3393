package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	WorkflowStatusActive    = "ACTIVE"
	WorkflowStatusCompleted = "COMPLETED"
	WorkflowStatusRejected  = "REJECTED"
)

const (
	StepStatusWaiting  = "WAITING"
	StepStatusActive   = "ACTIVE"
	StepStatusApproved = "APPROVED"
	StepStatusRejected = "REJECTED"
)

// ApprovalWorkflow one running (or completed/rejected) approval process bound
// to exactly one document. A document has at most one non-terminal workflow at
// any time. Rows are never deleted, they are the compliance record.
type ApprovalWorkflow struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	DocumentID   types.ID `json:"documentId"`
	DocumentType string   `json:"documentType"`
	ModuleType   string   `json:"moduleType"`
	TemplateID   types.ID `json:"templateId"`
	OrgID        types.ID `json:"orgId"`

	Status           string `json:"status"`
	CurrentStepOrder int    `json:"currentStepOrder"`

	StartedBy types.ID        `json:"startedBy"`
	StartTime types.Timestamp `json:"startTime" sql:"type:DATETIME(6) NOT NULL"`
	EndedBy   types.ID        `json:"endedBy"`
	EndTime   types.Timestamp `json:"endTime" sql:"type:DATETIME(6)"`

	Metadata Metadata `json:"metadata" sql:"type:TEXT"`
}

func (w ApprovalWorkflow) IsTerminal() bool {
	return w.Status == WorkflowStatusCompleted || w.Status == WorkflowStatusRejected
}

// ApprovalStep the per-workflow tracking record of one template step.
// Step definitions are copied from the template when the workflow starts,
// later template edits never alter in-flight workflows.
type ApprovalStep struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	WorkflowID types.ID `json:"workflowId"`
	StepOrder  int      `json:"stepOrder"`

	Name   string `json:"name"`
	Status string `json:"status"`

	AssigneeType    string     `json:"assigneeType"`
	AssigneeRole    string     `json:"assigneeRole"`
	AssigneeIDs     IDList     `json:"assigneeIds" sql:"type:TEXT"`
	RequiredActions StringList `json:"requiredActions" sql:"type:TEXT"`

	CompletedBy   types.ID        `json:"completedBy"`
	CompletedTime types.Timestamp `json:"completedTime" sql:"type:DATETIME(6)"`
	Comments      string          `json:"comments" sql:"type:TEXT"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type ApprovalWorkflowDetail struct {
	ApprovalWorkflow

	Steps []ApprovalStep `json:"steps"`
}
