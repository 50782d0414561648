package models

import (
	"log"

	"github.com/mmdatafocus/warehouse_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Location{},
		&ProductVariant{},
		&ReceivingSession{}, &ReceivingLine{},
		&ReceivingException{},
		&AuditEntry{},
		&InventoryUnit{},
		&PutawayTask{}, &PutawayTaskItem{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
