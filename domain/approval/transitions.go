package approval

import (
	"errors"
	"fmt"
	"signoff/bizerror"
	"signoff/domain"
	"signoff/history"
	"signoff/persistence"
	"signoff/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	ApproveStepFunc = ApproveStep
	RejectStepFunc  = RejectStep
)

type TransitionResult struct {
	Approval domain.ApprovalStep `json:"approval"`

	WorkflowCompleted bool `json:"workflowCompleted"`
	WorkflowRejected  bool `json:"workflowRejected"`
}

// ApproveStep completes the active step and either activates the next one or
// completes the workflow when the approved step was the last. The step
// update, the workflow update and the history entries are one transaction:
// a failure anywhere leaves nothing mutated.
func ApproveStep(approvalID types.ID, comments string, sec *session.Session) (*TransitionResult, error) {
	result := &TransitionResult{}
	var workflow domain.ApprovalWorkflow

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		step, wf, err := lockActiveStep(tx, approvalID, sec)
		if err != nil {
			return err
		}
		workflow = *wf

		now := types.CurrentTimestamp()
		if err := completeStep(tx, step, domain.StepStatusApproved, comments, now, sec); err != nil {
			return err
		}
		if _, err := history.CreateHistoryRecord(wf.ID, history.ActionStepApproved, sec.Identity.ID,
			fmt.Sprintf("step %d (%s) approved", step.StepOrder, step.Name), tx); err != nil {
			return err
		}
		result.Approval = *step

		// navigate by the snapshotted steps only, never back to the template
		var next domain.ApprovalStep
		err = tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&domain.ApprovalStep{WorkflowID: wf.ID, StepOrder: step.StepOrder + 1}).
			First(&next).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			// last step, the workflow is complete
			if err := terminateWorkflow(tx, wf, domain.WorkflowStatusCompleted, now, sec); err != nil {
				return err
			}
			if _, err := history.CreateHistoryRecord(wf.ID, history.ActionWorkflowCompleted, sec.Identity.ID,
				"all steps approved", tx); err != nil {
				return err
			}
			workflow.Status = domain.WorkflowStatusCompleted
			workflow.EndedBy = sec.Identity.ID
			workflow.EndTime = now
			result.WorkflowCompleted = true
			return nil
		}

		if next.Status != domain.StepStatusWaiting {
			return bizerror.ErrInvalidState
		}
		query := tx.Model(&domain.ApprovalStep{}).
			Where("id = ? AND status = ?", next.ID, domain.StepStatusWaiting).
			Update("status", domain.StepStatusActive)
		if err := query.Error; err != nil {
			return err
		}
		if query.RowsAffected != 1 {
			return bizerror.ErrConcurrentModification
		}

		query = tx.Model(&domain.ApprovalWorkflow{}).
			Where("id = ? AND status = ? AND current_step_order = ?", wf.ID, domain.WorkflowStatusActive, step.StepOrder).
			Update("current_step_order", next.StepOrder)
		if err := query.Error; err != nil {
			return err
		}
		if query.RowsAffected != 1 {
			return bizerror.ErrConcurrentModification
		}
		if _, err := history.CreateHistoryRecord(wf.ID, history.ActionStepActivated, sec.Identity.ID,
			fmt.Sprintf("step %d (%s) activated", next.StepOrder, next.Name), tx); err != nil {
			return err
		}
		workflow.CurrentStepOrder = next.StepOrder
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.WorkflowCompleted {
		DocumentStateChangeFunc(&workflow, sec)
	}
	WorkflowIndexNotifyFunc(workflow.ID)
	return result, nil
}

// RejectStep terminates the whole workflow. Rejection always requires a
// reason and is final: waiting steps stay waiting forever, a restart means a
// brand new workflow.
func RejectStep(approvalID types.ID, comments string, sec *session.Session) (*TransitionResult, error) {
	if comments == "" {
		return nil, bizerror.ErrMissingComments
	}

	result := &TransitionResult{WorkflowRejected: true}
	var workflow domain.ApprovalWorkflow

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		step, wf, err := lockActiveStep(tx, approvalID, sec)
		if err != nil {
			return err
		}
		workflow = *wf

		now := types.CurrentTimestamp()
		if err := completeStep(tx, step, domain.StepStatusRejected, comments, now, sec); err != nil {
			return err
		}
		if _, err := history.CreateHistoryRecord(wf.ID, history.ActionStepRejected, sec.Identity.ID,
			fmt.Sprintf("step %d (%s) rejected: %s", step.StepOrder, step.Name, comments), tx); err != nil {
			return err
		}

		if err := terminateWorkflow(tx, wf, domain.WorkflowStatusRejected, now, sec); err != nil {
			return err
		}
		if _, err := history.CreateHistoryRecord(wf.ID, history.ActionWorkflowRejected, sec.Identity.ID,
			fmt.Sprintf("workflow rejected at step %d", step.StepOrder), tx); err != nil {
			return err
		}

		workflow.Status = domain.WorkflowStatusRejected
		workflow.EndedBy = sec.Identity.ID
		workflow.EndTime = now
		result.Approval = *step
		return nil
	})
	if err != nil {
		return nil, err
	}

	DocumentStateChangeFunc(&workflow, sec)
	WorkflowIndexNotifyFunc(workflow.ID)
	return result, nil
}

// lockActiveStep reads the approval step and its workflow with row locks and
// checks every transition precondition. Concurrent transitions on the same
// step serialize on the lock, the loser fails the status check.
func lockActiveStep(tx *gorm.DB, approvalID types.ID, sec *session.Session) (*domain.ApprovalStep, *domain.ApprovalWorkflow, error) {
	step := domain.ApprovalStep{}
	if err := tx.Set("gorm:query_option", "FOR UPDATE").
		Where(&domain.ApprovalStep{ID: approvalID}).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, bizerror.ErrNotFound
		}
		return nil, nil, err
	}

	workflow := domain.ApprovalWorkflow{}
	if err := tx.Set("gorm:query_option", "FOR UPDATE").
		Where(&domain.ApprovalWorkflow{ID: step.WorkflowID}).First(&workflow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, bizerror.ErrNotFound
		}
		return nil, nil, err
	}

	if !sec.HasRoleSuffix("_" + workflow.OrgID.String()) {
		return nil, nil, bizerror.ErrForbidden
	}
	if !CanActOnStep(&step, &workflow, sec) {
		return nil, nil, bizerror.ErrForbidden
	}
	if step.Status != domain.StepStatusActive || workflow.Status != domain.WorkflowStatusActive {
		return nil, nil, bizerror.ErrInvalidState
	}
	if workflow.CurrentStepOrder != step.StepOrder {
		return nil, nil, bizerror.ErrInvalidState
	}
	return &step, &workflow, nil
}

func completeStep(tx *gorm.DB, step *domain.ApprovalStep, status string, comments string, now types.Timestamp, sec *session.Session) error {
	query := tx.Model(&domain.ApprovalStep{}).
		Where("id = ? AND status = ?", step.ID, domain.StepStatusActive).
		Update(map[string]interface{}{
			"status":         status,
			"completed_by":   sec.Identity.ID,
			"completed_time": now,
			"comments":       comments,
		})
	if err := query.Error; err != nil {
		return err
	}
	if query.RowsAffected != 1 {
		return bizerror.ErrConcurrentModification
	}
	step.Status = status
	step.CompletedBy = sec.Identity.ID
	step.CompletedTime = now
	step.Comments = comments
	return nil
}

func terminateWorkflow(tx *gorm.DB, workflow *domain.ApprovalWorkflow, status string, now types.Timestamp, sec *session.Session) error {
	query := tx.Model(&domain.ApprovalWorkflow{}).
		Where("id = ? AND status = ?", workflow.ID, domain.WorkflowStatusActive).
		Update(map[string]interface{}{
			"status":   status,
			"ended_by": sec.Identity.ID,
			"end_time": now,
		})
	if err := query.Error; err != nil {
		return err
	}
	if query.RowsAffected != 1 {
		return bizerror.ErrConcurrentModification
	}
	return nil
}
