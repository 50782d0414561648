package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

// ReceivingException is an append-only incident record attached to a line.
// All types are retained for dispute resolution; only DAMAGED feeds back into
// the line's quantity_damaged.
type ReceivingException struct {
	ID                 int           `gorm:"primary_key" json:"id"`
	WarehouseId        string        `gorm:"index;not null" json:"warehouse_id"`
	ReceivingSessionId int           `gorm:"index;not null" json:"receiving_session_id"`
	ReceivingLineId    int           `gorm:"index;not null" json:"receiving_line_id"`
	Type               ExceptionType `gorm:"type:enum('DAMAGED','WRONG_ITEM','MISSING','OVERAGE');not null" json:"type"`
	Quantity           int           `gorm:"not null" json:"quantity"`
	Notes              string        `gorm:"type:text" json:"notes"`
	PhotoRef           string        `gorm:"size:500" json:"photo_ref"`
	ReportedBy         int           `gorm:"index;not null" json:"reported_by"`
	CreatedAt          time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

type NewReceivingException struct {
	LineId   int           `json:"line_id" binding:"required"`
	Type     ExceptionType `json:"type" binding:"required"`
	Quantity int           `json:"quantity" binding:"required"`
	Notes    string        `json:"notes"`
	PhotoRef string        `json:"photo_ref"`
}

func ListSessionExceptions(ctx context.Context, sessionId int) ([]*ReceivingException, error) {

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}

	db := config.GetDB()
	var exceptions []*ReceivingException
	err := db.WithContext(ctx).
		Where("warehouse_id = ? AND receiving_session_id = ?", warehouseId, sessionId).
		Order("id").
		Find(&exceptions).Error
	if err != nil {
		return nil, err
	}
	return exceptions, nil
}
