package search

import (
	"encoding/json"
	"net/http"
	"signoff/domain"
	"signoff/es"
	"signoff/indices"
	"signoff/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	SearchWorkflowsFunc = SearchWorkflows
)

type WorkflowSearchQuery struct {
	OrgID        types.ID `json:"orgId" form:"orgId"`
	DocumentID   types.ID `json:"documentId" form:"documentId"`
	DocumentType string   `json:"documentType" form:"documentType"`
	ModuleType   string   `json:"moduleType" form:"moduleType"`
	Status       string   `json:"status" form:"status"`
}

func SearchWorkflows(q WorkflowSearchQuery, s *session.Session) ([]domain.ApprovalWorkflowDetail, error) {
	visibleOrgs := s.VisibleOrgs()
	if len(visibleOrgs) == 0 {
		return []domain.ApprovalWorkflowDetail{}, nil
	}

	filters := make([]es.H, 0, 6)
	filters = append(filters, es.H{"terms": es.H{"orgId": visibleOrgs}})
	if q.OrgID != 0 {
		filters = append(filters, es.H{"term": es.H{"orgId": q.OrgID}})
	}
	if q.DocumentID != 0 {
		filters = append(filters, es.H{"term": es.H{"documentId": q.DocumentID}})
	}
	if q.DocumentType != "" {
		filters = append(filters, es.H{"term": es.H{"documentType": q.DocumentType}})
	}
	if q.ModuleType != "" {
		filters = append(filters, es.H{"term": es.H{"moduleType": q.ModuleType}})
	}
	if q.Status != "" {
		filters = append(filters, es.H{"term": es.H{"status": q.Status}})
	}

	sorts := []es.H{{"startTime": es.H{"order": "desc"}}}
	root := es.H{"bool": es.H{"filter": filters}}
	r, err := es.SearchFunc(s.Context, indices.WorkflowIndexName, es.H{"size": 10000, "query": root, "sort": sorts})
	if err != nil {
		return nil, err
	}

	details := make([]domain.ApprovalWorkflowDetail, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		detail := domain.ApprovalWorkflowDetail{}
		if err := json.Unmarshal([]byte(hit.Source), &detail); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

func RegisterWorkflowSearchRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/workflow-indices", middleWares...)
	g.GET("", handleSearchWorkflows)
}

func handleSearchWorkflows(c *gin.Context) {
	query := WorkflowSearchQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	details, err := SearchWorkflowsFunc(query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, details)
}
