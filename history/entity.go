package history

import (
	"github.com/fundwit/go-commons/types"
)

type Action string

const (
	ActionWorkflowStarted   Action = "workflow_started"
	ActionStepApproved      Action = "step_approved"
	ActionStepRejected      Action = "step_rejected"
	ActionStepActivated     Action = "step_activated"
	ActionWorkflowCompleted Action = "workflow_completed"
	ActionWorkflowRejected  Action = "workflow_rejected"
)

// HistoryRecord one immutable audit entry of a workflow transition.
// Records are append-only: never updated, never deleted.
type HistoryRecord struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId"`

	Action      Action   `json:"action"`
	PerformedBy types.ID `json:"performedBy"`
	Details     string   `json:"details" sql:"type:TEXT"`

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`
}

func (r *HistoryRecord) TableName() string {
	return "workflow_histories"
}
