package servehttp

import (
	"net/http"
	"signoff/bizerror"
	"signoff/common"
	"signoff/domain/approval"
	"signoff/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type workflowHandler struct {
	validator *validator.Validate
}

type WorkflowQuery struct {
	DocumentID types.ID `form:"documentId" validate:"required"`
}

type ApprovalAction struct {
	Comments string `json:"comments"`
}

func RegisterWorkflowHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	handler := &workflowHandler{
		validator: validator.New(),
	}

	g := r.Group("/v1/approval-workflows", middleWares...)
	g.POST("", handler.handleStartWorkflow)
	g.GET("", handler.handleQueryDocumentWorkflows)
	g.GET(":workflowId", handler.handleDetailWorkflow)

	a := r.Group("/v1/approvals", middleWares...)
	a.POST(":approvalId/approval", handler.handleApproveStep)
	a.POST(":approvalId/rejection", handler.handleRejectStep)

	p := r.Group("/v1/pending-approvals", middleWares...)
	p.GET("", handler.handleQueryPendingApprovals)
}

func (h *workflowHandler) handleStartWorkflow(c *gin.Context) {
	creation := approval.WorkflowStart{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := approval.StartWorkflowFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *workflowHandler) handleQueryDocumentWorkflows(c *gin.Context) {
	query := WorkflowQuery{}
	_ = c.MustBindWith(&query, binding.Query)
	if err := h.validator.Struct(query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	workflows, err := approval.QueryDocumentWorkflowsFunc(query.DocumentID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, workflows)
}

func (h *workflowHandler) handleDetailWorkflow(c *gin.Context) {
	id, err := types.ParseID(c.Param("workflowId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("workflowId") + "'"})
		return
	}

	view, err := approval.DetailWorkflowFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *workflowHandler) handleApproveStep(c *gin.Context) {
	id, err := types.ParseID(c.Param("approvalId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("approvalId") + "'"})
		return
	}

	action := ApprovalAction{}
	if err := c.ShouldBindBodyWith(&action, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	result, err := approval.ApproveStepFunc(id, action.Comments, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *workflowHandler) handleRejectStep(c *gin.Context) {
	id, err := types.ParseID(c.Param("approvalId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("approvalId") + "'"})
		return
	}

	action := ApprovalAction{}
	if err := c.ShouldBindBodyWith(&action, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	result, err := approval.RejectStepFunc(id, action.Comments, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *workflowHandler) handleQueryPendingApprovals(c *gin.Context) {
	result, err := approval.QueryPendingApprovalsFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}
