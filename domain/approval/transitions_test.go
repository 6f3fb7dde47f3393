package approval_test

import (
	"signoff/bizerror"
	"signoff/domain"
	"signoff/domain/approval"
	"signoff/history"
	"signoff/session"
	"signoff/testinfra"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func TestApproveStep(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should fail on unknown approval id", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		_, err := approval.ApproveStep(404, "", testinfra.BuildSecCtx(12, "reviewer_100"))
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should be forbidden for non assignees", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())
		stepId := firstStepId(testDatabase, started.ID)

		// an org member who does not hold the step's role
		_, err = approval.ApproveStep(stepId, "", testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(Equal(bizerror.ErrForbidden))

		// a reviewer, but of another org
		_, err = approval.ApproveStep(stepId, "", testinfra.BuildSecCtx(40, "reviewer_300"))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})

	t.Run("should complete the step and activate the next one", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())

		reviewer := testinfra.BuildSecCtx(12, "reviewer_100")
		result, err := approval.ApproveStep(firstStepId(testDatabase, started.ID), "looks good", reviewer)
		Expect(err).To(BeNil())
		Expect(result.WorkflowCompleted).To(BeFalse())
		Expect(result.WorkflowRejected).To(BeFalse())
		Expect(result.Approval.Status).To(Equal(domain.StepStatusApproved))
		Expect(result.Approval.CompletedBy).To(Equal(types.ID(12)))
		Expect(result.Approval.Comments).To(Equal("looks good"))
		Expect(time.Since(result.Approval.CompletedTime.Time()) < time.Second).To(BeTrue())

		db := testDatabase.DS.GormDB(nil)
		var steps []domain.ApprovalStep
		Expect(db.Where(domain.ApprovalStep{WorkflowID: started.ID}).Order("step_order ASC").Find(&steps).Error).To(BeNil())
		Expect(steps[0].Status).To(Equal(domain.StepStatusApproved))
		Expect(steps[1].Status).To(Equal(domain.StepStatusActive))

		workflow := domain.ApprovalWorkflow{}
		Expect(db.Where(&domain.ApprovalWorkflow{ID: started.ID}).First(&workflow).Error).To(BeNil())
		Expect(workflow.Status).To(Equal(domain.WorkflowStatusActive))
		Expect(workflow.CurrentStepOrder).To(Equal(2))

		records, err := history.QueryHistories(started.ID, db)
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(3))
		Expect(records[0].Action).To(Equal(history.ActionStepActivated))
		Expect(records[1].Action).To(Equal(history.ActionStepApproved))
		Expect(records[2].Action).To(Equal(history.ActionWorkflowStarted))
	})

	t.Run("should complete the workflow on the last step", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		indexedWorkflows := workflowsTestSetup(t, &testDatabase)

		var stateChanged []domain.ApprovalWorkflow
		approval.DocumentStateChangeFunc = func(workflow *domain.ApprovalWorkflow, sec *session.Session) {
			stateChanged = append(stateChanged, *workflow)
		}

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())
		_, err = approval.ApproveStep(firstStepId(testDatabase, started.ID), "", testinfra.BuildSecCtx(12, "reviewer_100"))
		Expect(err).To(BeNil())
		Expect(len(stateChanged)).To(BeZero())

		// user 20 is a listed assignee of the final step
		result, err := approval.ApproveStep(pending0Id(testDatabase, started.ID), "approved", testinfra.BuildSecCtx(20, "author_100"))
		Expect(err).To(BeNil())
		Expect(result.WorkflowCompleted).To(BeTrue())
		Expect(result.Approval.Status).To(Equal(domain.StepStatusApproved))

		db := testDatabase.DS.GormDB(nil)
		workflow := domain.ApprovalWorkflow{}
		Expect(db.Where(&domain.ApprovalWorkflow{ID: started.ID}).First(&workflow).Error).To(BeNil())
		Expect(workflow.Status).To(Equal(domain.WorkflowStatusCompleted))
		Expect(workflow.EndedBy).To(Equal(types.ID(20)))
		Expect(time.Since(workflow.EndTime.Time()) < time.Second).To(BeTrue())

		// 2N+1 records for N approved steps
		records, err := history.QueryHistories(started.ID, db)
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(5))
		Expect(records[0].Action).To(Equal(history.ActionWorkflowCompleted))

		Expect(len(stateChanged)).To(Equal(1))
		Expect(stateChanged[0].Status).To(Equal(domain.WorkflowStatusCompleted))
		Expect(len(*indexedWorkflows)).To(Equal(3))
	})

	t.Run("should refuse a stale approval", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())
		stepId := firstStepId(testDatabase, started.ID)

		reviewer := testinfra.BuildSecCtx(12, "reviewer_100")
		_, err = approval.ApproveStep(stepId, "", reviewer)
		Expect(err).To(BeNil())

		// the same approval again: already APPROVED, nothing mutates
		_, err = approval.ApproveStep(stepId, "", reviewer)
		Expect(err).To(Equal(bizerror.ErrInvalidState))

		records, err := history.QueryHistories(started.ID, testDatabase.DS.GormDB(nil))
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(3))
	})

	t.Run("should refuse acting on a waiting step", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())

		waiting := domain.ApprovalStep{}
		Expect(testDatabase.DS.GormDB(nil).
			Where(domain.ApprovalStep{WorkflowID: started.ID, StepOrder: 2}).First(&waiting).Error).To(BeNil())

		_, err = approval.ApproveStep(waiting.ID, "", testinfra.BuildSecCtx(20, "author_100"))
		Expect(err).To(Equal(bizerror.ErrInvalidState))
	})
}

func TestRejectStep(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should require comments before anything else", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())
		stepId := firstStepId(testDatabase, started.ID)

		_, err = approval.RejectStep(stepId, "", testinfra.BuildSecCtx(12, "reviewer_100"))
		Expect(err).To(Equal(bizerror.ErrMissingComments))

		// even an unknown id reports the missing comments first
		_, err = approval.RejectStep(404, "", testinfra.BuildSecCtx(12, "reviewer_100"))
		Expect(err).To(Equal(bizerror.ErrMissingComments))

		db := testDatabase.DS.GormDB(nil)
		step := domain.ApprovalStep{}
		Expect(db.Where(&domain.ApprovalStep{ID: stepId}).First(&step).Error).To(BeNil())
		Expect(step.Status).To(Equal(domain.StepStatusActive))
		records, err := history.QueryHistories(started.ID, db)
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(1))
	})

	t.Run("should terminate the whole workflow", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		var stateChanged []domain.ApprovalWorkflow
		approval.DocumentStateChangeFunc = func(workflow *domain.ApprovalWorkflow, sec *session.Session) {
			stateChanged = append(stateChanged, *workflow)
		}

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())

		reviewer := testinfra.BuildSecCtx(12, "reviewer_100")
		result, err := approval.RejectStep(firstStepId(testDatabase, started.ID), "insufficient clinical data", reviewer)
		Expect(err).To(BeNil())
		Expect(result.WorkflowRejected).To(BeTrue())
		Expect(result.Approval.Status).To(Equal(domain.StepStatusRejected))
		Expect(result.Approval.Comments).To(Equal("insufficient clinical data"))

		db := testDatabase.DS.GormDB(nil)
		var steps []domain.ApprovalStep
		Expect(db.Where(domain.ApprovalStep{WorkflowID: started.ID}).Order("step_order ASC").Find(&steps).Error).To(BeNil())
		Expect(steps[0].Status).To(Equal(domain.StepStatusRejected))
		// later steps are never activated
		Expect(steps[1].Status).To(Equal(domain.StepStatusWaiting))

		workflow := domain.ApprovalWorkflow{}
		Expect(db.Where(&domain.ApprovalWorkflow{ID: started.ID}).First(&workflow).Error).To(BeNil())
		Expect(workflow.Status).To(Equal(domain.WorkflowStatusRejected))
		Expect(workflow.EndedBy).To(Equal(types.ID(12)))

		records, err := history.QueryHistories(started.ID, db)
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(3))
		Expect(records[0].Action).To(Equal(history.ActionWorkflowRejected))
		Expect(records[1].Action).To(Equal(history.ActionStepRejected))

		Expect(len(stateChanged)).To(Equal(1))
		Expect(stateChanged[0].Status).To(Equal(domain.WorkflowStatusRejected))
	})

	t.Run("should refuse any action on a terminal workflow", func(t *testing.T) {
		defer workflowsTestTeardown(t, testDatabase)
		workflowsTestSetup(t, &testDatabase)

		tmpl := buildDemoTemplate(100, testinfra.BuildSecCtx(10, "admin_100"))
		started, err := approval.StartWorkflow(buildDemoWorkflowStart(200, tmpl.ID), testinfra.BuildSecCtx(11, "author_100"))
		Expect(err).To(BeNil())
		stepId := firstStepId(testDatabase, started.ID)

		reviewer := testinfra.BuildSecCtx(12, "reviewer_100")
		_, err = approval.RejectStep(stepId, "missing data", reviewer)
		Expect(err).To(BeNil())

		_, err = approval.ApproveStep(stepId, "", reviewer)
		Expect(err).To(Equal(bizerror.ErrInvalidState))
		_, err = approval.RejectStep(stepId, "again", reviewer)
		Expect(err).To(Equal(bizerror.ErrInvalidState))

		records, err := history.QueryHistories(started.ID, testDatabase.DS.GormDB(nil))
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(3))
	})
}
