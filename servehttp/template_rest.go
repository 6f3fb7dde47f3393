package servehttp

import (
	"net/http"
	"signoff/bizerror"
	"signoff/common"
	"signoff/domain/template"
	"signoff/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type templateHandler struct {
	validator *validator.Validate
}

type TemplateResolutionQuery struct {
	OrgID        types.ID `form:"orgId" validate:"required"`
	ModuleType   string   `form:"moduleType" validate:"required"`
	DocumentType string   `form:"documentType" validate:"required"`
}

func RegisterTemplateHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/approval-templates", middleWares...)

	handler := &templateHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateTemplate)
	g.GET("", handler.handleQueryTemplates)
	g.GET("resolution", handler.handleResolveTemplate)
	g.GET(":templateId", handler.handleDetailTemplate)
	g.DELETE(":templateId", handler.handleDeactivateTemplate)
}

func (h *templateHandler) handleCreateTemplate(c *gin.Context) {
	creation := template.TemplateCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := template.CreateTemplateFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *templateHandler) handleQueryTemplates(c *gin.Context) {
	query := template.TemplateQuery{}
	_ = c.MustBindWith(&query, binding.Query)
	if err := h.validator.Struct(query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	templates, err := template.QueryTemplatesFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, templates)
}

func (h *templateHandler) handleResolveTemplate(c *gin.Context) {
	query := TemplateResolutionQuery{}
	_ = c.MustBindWith(&query, binding.Query)
	if err := h.validator.Struct(query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := template.ResolveTemplateFunc(query.ModuleType, query.OrgID, query.DocumentType, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *templateHandler) handleDetailTemplate(c *gin.Context) {
	id, err := types.ParseID(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("templateId") + "'"})
		return
	}

	detail, err := template.DetailTemplateFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *templateHandler) handleDeactivateTemplate(c *gin.Context) {
	id, err := types.ParseID(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("templateId") + "'"})
		return
	}

	if err := template.DeactivateTemplateFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}
