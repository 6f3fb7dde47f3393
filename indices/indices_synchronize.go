package indices

import (
	"context"
	"fmt"
	"signoff/account"
	"signoff/authority"
	"signoff/bizerror"
	"signoff/domain"
	"signoff/domain/approval"
	"signoff/session"
	"sync"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	indexRobot = &session.Session{
		Token:    "index-robot",
		Identity: session.Identity{ID: 10, Name: "index-robot"},
		Perms:    authority.Permissions{"system:view"},
		Context:  context.Background(),
	}

	lock    sync.Mutex
	running bool

	syncRequestLimiter = rate.NewLimiter(rate.Every(10*time.Second), 1)

	SyncWorkflowIndexFunc  = SyncWorkflowIndex
	IndicesFullSyncFunc    = IndicesFullSync
	ScheduleNewSyncRunFunc = ScheduleNewSyncRun
)

var (
	SyncBatchSize = 500
)

// SyncWorkflowIndex refreshes the index document of one workflow. Invoked
// after an engine transaction commits; indexing failures are logged, never
// propagated back into the transition.
func SyncWorkflowIndex(workflowID types.ID) {
	view, err := approval.DetailWorkflowFunc(workflowID, indexRobot)
	if err != nil {
		logrus.Warnf("index sync: error on retrieve workflow %d: %v", workflowID, err)
		return
	}
	detail := domain.ApprovalWorkflowDetail{ApprovalWorkflow: view.ApprovalWorkflow, Steps: view.Steps}
	if err := IndexWorkflows([]domain.ApprovalWorkflowDetail{detail}); err != nil {
		logrus.Warnf("index sync: error on index workflow %d: %v", workflowID, err)
	}
}

func ScheduleNewSyncRun(sec *session.Session) (bool, error) {
	if sec == nil || !sec.Perms.HasRole(account.SystemAdminPermission.ID) {
		return false, bizerror.ErrForbidden
	}
	if !syncRequestLimiter.Allow() {
		return false, nil
	}

	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		IndicesFullSyncFunc()
	}()
	waitRunning.Wait()
	return true, nil
}

func IndicesFullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	page := 1
	for {
		workflows, err := approval.LoadWorkflowsFunc(page, SyncBatchSize)
		if err != nil {
			logrus.Warnf("indices full sync: error on retrieve workflows(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
			page++
			continue
		}

		if len(workflows) == 0 {
			logrus.Infof("indices full sync: there are no more workflows to index")
			return nil // loop exit
		}

		if err := IndexWorkflows(workflows); err != nil {
			logrus.Warnf("indices full sync: error on index workflows(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
		}
		page++
	}
}
