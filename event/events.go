package event

import (
	"officeflow/idgen"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	eventIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	FireEventFunc = FireEvent
)

// CreateEvent persists the record through the caller's transaction.
// Handlers must not run yet, the row is invisible until commit:
// fire the returned record with FireEvent once the transaction succeeded.
func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, category EventCategory,
	updatedProperties []UpdatedProperty, identity *session.Identity, db *gorm.DB) (*EventRecord, error) {

	record := EventRecord{
		ID: idgen.NextID(eventIdWorker),
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			EventCategory:     category,
			UpdatedProperties: updatedProperties,

			CreatorId:   identity.ID,
			CreatorName: identity.Name,
		},
		Synced:    false,
		Timestamp: types.CurrentTimestamp(),
	}
	if err := EventPersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}

// FireEvent fans the handlers out and marks the record synced unless one of
// them failed. A failed record keeps synced=false for later inspection.
func FireEvent(record *EventRecord) {
	if record == nil {
		return
	}
	results := InvokeHandlersFunc(record)
	for _, r := range results {
		if !r.Success {
			return
		}
	}
	if err := EventSyncedMarkFunc(record); err != nil {
		logrus.Error("failed to mark event synced ", record.ID, " ", err)
	}
}
