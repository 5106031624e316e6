package event

import (
	"officeflow/persistence"

	"github.com/jinzhu/gorm"
)

var (
	EventPersistCreateFunc = EventPersistCreate
	EventSyncedMarkFunc    = EventSyncedMark
)

func EventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

func EventSyncedMark(record *EventRecord) error {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	return db.Model(&EventRecord{}).Where("id = ?", record.ID).Update("synced", true).Error
}
