package approval

import (
	"errors"
	"fmt"
	"signoff/bizerror"
	"signoff/common"
	"signoff/domain"
	"signoff/domain/template"
	"signoff/history"
	"signoff/persistence"
	"signoff/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	StartWorkflowFunc          = StartWorkflow
	DetailWorkflowFunc         = DetailWorkflow
	QueryDocumentWorkflowsFunc = QueryDocumentWorkflows
	QueryPendingApprovalsFunc  = QueryPendingApprovals
	LoadWorkflowsFunc          = LoadWorkflows
)

type WorkflowStart struct {
	DocumentID   types.ID `json:"documentId" validate:"required"`
	DocumentType string   `json:"documentType" validate:"required"`
	ModuleType   string   `json:"moduleType" validate:"required"`
	OrgID        types.ID `json:"orgId" validate:"required"`

	// TemplateID zero means resolve by document type.
	TemplateID types.ID        `json:"templateId"`
	Metadata   domain.Metadata `json:"metadata"`
}

type WorkflowView struct {
	domain.ApprovalWorkflow

	Steps   []domain.ApprovalStep   `json:"steps"`
	History []history.HistoryRecord `json:"history"`
}

type PendingApproval struct {
	Workflow domain.ApprovalWorkflow `json:"workflow"`
	Step     domain.ApprovalStep     `json:"step"`
}

// StartWorkflow materializes a workflow from a template: the instance plus
// one approval step per template step, step one active and the rest waiting.
// Step definitions are snapshotted, later template edits cannot reach
// in-flight workflows. The whole effect is one transaction.
func StartWorkflow(c *WorkflowStart, sec *session.Session) (*domain.ApprovalWorkflowDetail, error) {
	if !sec.HasRoleSuffix("_" + c.OrgID.String()) {
		return nil, bizerror.ErrForbidden
	}
	if err := DocumentCheckFunc(c.DocumentID, sec); err != nil {
		return nil, err
	}

	tmpl, err := resolveStartTemplate(c, sec)
	if err != nil {
		return nil, err
	}
	if len(tmpl.Steps) == 0 {
		return nil, bizerror.ErrInvalidTemplate
	}

	now := types.CurrentTimestamp()
	detail := &domain.ApprovalWorkflowDetail{
		ApprovalWorkflow: domain.ApprovalWorkflow{
			ID: common.NextId(idWorker),

			DocumentID:   c.DocumentID,
			DocumentType: c.DocumentType,
			ModuleType:   c.ModuleType,
			TemplateID:   tmpl.ID,
			OrgID:        c.OrgID,

			Status:           domain.WorkflowStatusActive,
			CurrentStepOrder: 1,

			StartedBy: sec.Identity.ID,
			StartTime: now,
			Metadata:  c.Metadata,
		},
	}
	for _, s := range tmpl.Steps {
		status := domain.StepStatusWaiting
		if s.Order == 1 {
			status = domain.StepStatusActive
		}
		detail.Steps = append(detail.Steps, domain.ApprovalStep{
			ID: common.NextId(idWorker),

			WorkflowID: detail.ID,
			StepOrder:  s.Order,

			Name:   s.Name,
			Status: status,

			AssigneeType:    s.AssigneeType,
			AssigneeRole:    s.AssigneeRole,
			AssigneeIDs:     s.AssigneeIDs,
			RequiredActions: s.RequiredActions,

			CreateTime: now,
		})
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err = db.Transaction(func(tx *gorm.DB) error {
		// a document has at most one non-terminal workflow
		var running domain.ApprovalWorkflow
		err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&domain.ApprovalWorkflow{DocumentID: c.DocumentID, Status: domain.WorkflowStatusActive}).
			First(&running).Error
		if err == nil {
			return bizerror.ErrInvalidState
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(&detail.ApprovalWorkflow).Error; err != nil {
			return err
		}
		for _, step := range detail.Steps {
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
		}
		_, err = history.CreateHistoryRecord(detail.ID, history.ActionWorkflowStarted, sec.Identity.ID,
			fmt.Sprintf("workflow started for document %s with template %s", c.DocumentID.String(), tmpl.ID.String()), tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	WorkflowIndexNotifyFunc(detail.ID)
	return detail, nil
}

func resolveStartTemplate(c *WorkflowStart, sec *session.Session) (*domain.ApprovalTemplateDetail, error) {
	if c.TemplateID == 0 {
		return template.ResolveTemplateFunc(c.ModuleType, c.OrgID, c.DocumentType, sec)
	}

	tmpl, err := template.DetailTemplateFunc(c.TemplateID, sec)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrInvalidTemplate
		}
		return nil, err
	}
	if tmpl.OrgID != c.OrgID {
		return nil, bizerror.ErrInvalidTemplate
	}
	return tmpl, nil
}

// DetailWorkflow the read-only composite view: instance, steps ascending,
// history newest first.
func DetailWorkflow(id types.ID, sec *session.Session) (*WorkflowView, error) {
	view := WorkflowView{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.ApprovalWorkflow{ID: id}).First(&view.ApprovalWorkflow).Error; err != nil {
		return nil, err
	}
	if !sec.HasOrgViewPerm(view.OrgID) {
		return nil, bizerror.ErrForbidden
	}

	if err := db.Where(domain.ApprovalStep{WorkflowID: id}).Order("step_order ASC").Find(&view.Steps).Error; err != nil {
		return nil, err
	}
	records, err := history.QueryHistoriesFunc(id, db)
	if err != nil {
		return nil, err
	}
	view.History = records
	return &view, nil
}

// QueryDocumentWorkflows all workflows of a document, newest first,
// terminal ones included.
func QueryDocumentWorkflows(documentID types.ID, sec *session.Session) (*[]domain.ApprovalWorkflow, error) {
	visibleOrgs := sec.VisibleOrgs()
	if len(visibleOrgs) == 0 {
		return &[]domain.ApprovalWorkflow{}, nil
	}

	var workflows []domain.ApprovalWorkflow
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(domain.ApprovalWorkflow{DocumentID: documentID}).
		Where("org_id IN (?)", visibleOrgs).
		Order("start_time DESC, id DESC").Find(&workflows).Error; err != nil {
		return nil, err
	}
	return &workflows, nil
}

// LoadWorkflows pages through every workflow with its steps, for index
// synchronization. Not permission-checked, internal callers only.
func LoadWorkflows(page, pageSize int) ([]domain.ApprovalWorkflowDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	var workflows []domain.ApprovalWorkflow
	if err := db.Model(&domain.ApprovalWorkflow{}).Order("id ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&workflows).Error; err != nil {
		return nil, err
	}

	details := make([]domain.ApprovalWorkflowDetail, 0, len(workflows))
	for _, w := range workflows {
		detail := domain.ApprovalWorkflowDetail{ApprovalWorkflow: w}
		if err := db.Where(domain.ApprovalStep{WorkflowID: w.ID}).
			Order("step_order ASC").Find(&detail.Steps).Error; err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

// QueryPendingApprovals the active steps across active workflows the session
// user may act on.
func QueryPendingApprovals(sec *session.Session) ([]PendingApproval, error) {
	visibleOrgs := sec.VisibleOrgs()
	if len(visibleOrgs) == 0 {
		return []PendingApproval{}, nil
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	var workflows []domain.ApprovalWorkflow
	if err := db.Where(domain.ApprovalWorkflow{Status: domain.WorkflowStatusActive}).
		Where("org_id IN (?)", visibleOrgs).Find(&workflows).Error; err != nil {
		return nil, err
	}
	if len(workflows) == 0 {
		return []PendingApproval{}, nil
	}

	workflowIndex := map[types.ID]domain.ApprovalWorkflow{}
	workflowIds := make([]types.ID, 0, len(workflows))
	for _, w := range workflows {
		workflowIndex[w.ID] = w
		workflowIds = append(workflowIds, w.ID)
	}

	var steps []domain.ApprovalStep
	if err := db.Where("workflow_id IN (?)", workflowIds).
		Where(domain.ApprovalStep{Status: domain.StepStatusActive}).
		Order("create_time ASC, id ASC").Find(&steps).Error; err != nil {
		return nil, err
	}

	result := []PendingApproval{}
	for _, step := range steps {
		workflow := workflowIndex[step.WorkflowID]
		s := step
		if CanActOnStep(&s, &workflow, sec) {
			result = append(result, PendingApproval{Workflow: workflow, Step: s})
		}
	}
	return result, nil
}
