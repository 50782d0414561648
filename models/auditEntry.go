package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

// AuditEntry is the append-only record of every state-changing action.
// Rows are never updated or deleted.
type AuditEntry struct {
	ID            int       `gorm:"primary_key" json:"id"`
	WarehouseId   string    `gorm:"index;not null" json:"warehouse_id"`
	EntityType    string    `gorm:"size:100;not null" json:"entity_type"`
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Action        string    `gorm:"size:100;not null" json:"action"`
	Payload       string    `gorm:"type:text" json:"payload"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CorrelationId string    `gorm:"size:36" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SaveAuditEntry writes one audit row inside the caller's transaction.
// Actor identity comes from the transaction's context.
func SaveAuditEntry(tx *gorm.DB, entityType string, entityId int, action string, payload any) error {

	ctx := tx.Statement.Context

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return errors.New("warehouse id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	p, _ := json.Marshal(payload)

	entry := AuditEntry{
		WarehouseId:   warehouseId,
		EntityType:    entityType,
		EntityId:      entityId,
		Action:        action,
		Payload:       string(p),
		UserId:        userId,
		UserName:      userName,
		CorrelationId: correlationId,
	}
	return tx.Create(&entry).Error
}

// ListAuditEntries returns the audit trail for one entity, newest first.
func ListAuditEntries(ctx context.Context, entityType string, entityId int) ([]*AuditEntry, error) {

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}

	db := config.GetDB()
	var entries []*AuditEntry
	err := db.WithContext(ctx).
		Where("warehouse_id = ? AND entity_type = ? AND entity_id = ?", warehouseId, entityType, entityId).
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
