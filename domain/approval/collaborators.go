package approval

import (
	"signoff/domain"
	"signoff/session"

	"github.com/fundwit/go-commons/types"
)

// The workflow engine does not own document state. Existence is checked
// through DocumentCheckFunc before a workflow starts, and terminal
// transitions are reported through DocumentStateChangeFunc after the
// engine transaction has committed, never inside it.
var (
	DocumentCheckFunc       = func(documentID types.ID, sec *session.Session) error { return nil }
	DocumentStateChangeFunc = func(workflow *domain.ApprovalWorkflow, sec *session.Session) {}

	// WorkflowIndexNotifyFunc reports a changed workflow to the search
	// indexer, also post-commit only.
	WorkflowIndexNotifyFunc = func(workflowID types.ID) {}
)

// CanActOnStep reports whether the session user is an eligible assignee of the
// step. Multiple assignees have OR semantics, any one of them may act. A
// role-assigned step requires actual role membership in the workflow's org,
// it is never granted by default.
func CanActOnStep(step *domain.ApprovalStep, workflow *domain.ApprovalWorkflow, sec *session.Session) bool {
	if step.AssigneeType == domain.AssigneeTypeUsers {
		return step.AssigneeIDs.Contains(sec.Identity.ID)
	}
	if step.AssigneeType == domain.AssigneeTypeRole && step.AssigneeRole != "" {
		return sec.HasRole(step.AssigneeRole + "_" + workflow.OrgID.String())
	}
	return false
}
