package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type Location struct {
	ID          int          `gorm:"primary_key" json:"id"`
	WarehouseId string       `gorm:"index;not null" json:"warehouse_id"`
	Code        string       `gorm:"size:50;not null" json:"code" binding:"required"`
	Name        string       `gorm:"size:100;not null" json:"name" binding:"required"`
	Type        LocationType `gorm:"type:enum('RECEIVING','STORAGE','PICKING','DOCK');not null" json:"type" binding:"required"`
	IsActive    *bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLocation struct {
	Code string       `json:"code" binding:"required"`
	Name string       `json:"name" binding:"required"`
	Type LocationType `json:"type" binding:"required"`
}

func CreateLocation(ctx context.Context, input *NewLocation) (*Location, error) {

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}

	if err := utils.ValidateUnique[Location](ctx, warehouseId, "code", input.Code, 0); err != nil {
		return nil, fmt.Errorf("%w: location code already exists", utils.ErrorValidation)
	}

	location := Location{
		WarehouseId: warehouseId,
		Code:        input.Code,
		Name:        input.Name,
		Type:        input.Type,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func ListLocations(ctx context.Context) ([]*Location, error) {

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}
	return utils.FetchAllModels[Location](ctx, warehouseId)
}

// ResolveReceivingLocation picks the location a session counts into:
// the explicit id when given, else the first active RECEIVING location,
// else the first active STORAGE location.
func ResolveReceivingLocation(tx *gorm.DB, ctx context.Context, warehouseId string, explicitId int) (*Location, error) {

	if explicitId != 0 {
		if err := utils.ValidateResourceId[Location](ctx, warehouseId, explicitId); err != nil {
			return nil, fmt.Errorf("%w: receiving location %d", utils.ErrorRecordNotFound, explicitId)
		}
		var location Location
		if err := tx.WithContext(ctx).First(&location, explicitId).Error; err != nil {
			return nil, err
		}
		return &location, nil
	}

	for _, locType := range []LocationType{LocationTypeReceiving, LocationTypeStorage} {
		var location Location
		err := tx.WithContext(ctx).
			Where("warehouse_id = ? AND type = ? AND is_active = true", warehouseId, locType).
			Order("id").
			First(&location).Error
		if err == nil {
			return &location, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: no receiving or storage location configured", utils.ErrorValidation)
}
