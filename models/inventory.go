package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// InventoryUnit is durable stock created at approval time, keyed by
// (variant, location, lot). Owned by the inventory subsystem after creation;
// this package only does the find-or-create-and-increment write.
type InventoryUnit struct {
	ID               int             `gorm:"primary_key" json:"id"`
	WarehouseId      string          `gorm:"index;not null" json:"warehouse_id"`
	ProductVariantId int             `gorm:"index;not null" json:"product_variant_id"`
	LocationId       int             `gorm:"index;not null" json:"location_id"`
	LotNumber        string          `gorm:"size:100;not null;default:''" json:"lot_number"`
	Quantity         int             `gorm:"not null;default:0" json:"quantity"`
	Status           InventoryStatus `gorm:"size:20;not null;default:'available'" json:"status"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertInventoryUnit increments the unit for the key if one exists, else
// creates it at the given quantity. Must run inside the approval transaction
// so the same SKU on multiple lines never double-creates. Returns the unit
// and whether it was newly created.
func UpsertInventoryUnit(tx *gorm.DB, ctx context.Context, warehouseId string, variantId int, locationId int, lotNumber string, quantity int) (*InventoryUnit, bool, error) {

	if quantity <= 0 {
		return nil, false, errors.New("inventory quantity must be positive")
	}

	var unit InventoryUnit
	err := tx.WithContext(ctx).
		Where("warehouse_id = ? AND product_variant_id = ? AND location_id = ? AND lot_number = ?",
			warehouseId, variantId, locationId, lotNumber).
		First(&unit).Error
	if err == nil {
		err = tx.WithContext(ctx).Model(&unit).
			Update("quantity", gorm.Expr("quantity + ?", quantity)).Error
		if err != nil {
			return nil, false, err
		}
		unit.Quantity += quantity
		return &unit, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	unit = InventoryUnit{
		WarehouseId:      warehouseId,
		ProductVariantId: variantId,
		LocationId:       locationId,
		LotNumber:        lotNumber,
		Quantity:         quantity,
		Status:           InventoryStatusAvailable,
	}
	if err := tx.WithContext(ctx).Create(&unit).Error; err != nil {
		return nil, false, err
	}
	return &unit, true, nil
}
