package history

import (
	"signoff/common"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	HistoryPersistCreateFunc = PersistCreate
	QueryHistoriesFunc       = QueryHistories
)

// CreateHistoryRecord appends one audit entry within the caller's transaction.
// Only the workflow engine calls this, external callers read via QueryHistories.
func CreateHistoryRecord(workflowID types.ID, action Action, performedBy types.ID, details string, tx *gorm.DB) (*HistoryRecord, error) {
	record := &HistoryRecord{
		ID:         common.NextId(idWorker),
		WorkflowID: workflowID,

		Action:      action,
		PerformedBy: performedBy,
		Details:     details,

		Timestamp: types.CurrentTimestamp(),
	}
	if err := HistoryPersistCreateFunc(record, tx); err != nil {
		return nil, err
	}
	return record, nil
}

func PersistCreate(record *HistoryRecord, tx *gorm.DB) error {
	return tx.Create(record).Error
}

// QueryHistories returns the audit trail of one workflow, newest first.
func QueryHistories(workflowID types.ID, db *gorm.DB) ([]HistoryRecord, error) {
	var records []HistoryRecord
	if err := db.Where(&HistoryRecord{WorkflowID: workflowID}).
		Order("`timestamp` DESC, id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
