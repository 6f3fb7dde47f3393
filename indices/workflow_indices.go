package indices

import (
	"context"
	"fmt"
	"signoff/domain"
	"signoff/es"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	WorkflowIndexName = "approval-workflows"
)

type WorkflowDocument struct {
	domain.ApprovalWorkflowDetail
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexWorkflows(workflows []domain.ApprovalWorkflowDetail) error {
	docs := make([]WorkflowDocument, 0, len(workflows))
	for _, workflow := range workflows {
		docs = append(docs, WorkflowDocument{ApprovalWorkflowDetail: workflow})
	}

	if err := saveWorkflowDocuments(docs); err != nil {
		return err
	}
	return nil
}

func saveWorkflowDocuments(docs []WorkflowDocument) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(context.Background(), WorkflowIndexName, doc.ID, doc); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index workflow %d %s\n", doc.ID, err)
		} else {
			logrus.Infof("index workflow %d successfully\n", doc.ID)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
