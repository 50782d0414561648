package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant is the catalog row scanned tokens are matched against.
// Upc and Barcode may both be empty; receiving lines for such variants get a
// generated barcode so every line stays scannable.
type ProductVariant struct {
	ID          int             `gorm:"primary_key" json:"id"`
	WarehouseId string          `gorm:"index;not null" json:"warehouse_id"`
	Sku         string          `gorm:"index;size:100;not null" json:"sku" binding:"required"`
	Upc         string          `gorm:"index;size:100" json:"upc"`
	Barcode     string          `gorm:"index;size:100" json:"barcode"`
	Name        string          `gorm:"size:255;not null" json:"name" binding:"required"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductVariant struct {
	Sku      string          `json:"sku" binding:"required"`
	Upc      string          `json:"upc"`
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name" binding:"required"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

func CreateProductVariant(ctx context.Context, input *NewProductVariant) (*ProductVariant, error) {

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}

	if err := utils.ValidateUnique[ProductVariant](ctx, warehouseId, "sku", input.Sku, 0); err != nil {
		return nil, errors.New("sku already exists")
	}

	variant := ProductVariant{
		WarehouseId: warehouseId,
		Sku:         input.Sku,
		Upc:         input.Upc,
		Barcode:     input.Barcode,
		Name:        input.Name,
		UnitCost:    input.UnitCost,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindVariantBySku returns nil (no error) when the sku is not in the catalog.
func FindVariantBySku(tx *gorm.DB, ctx context.Context, warehouseId string, sku string) (*ProductVariant, error) {
	var variant ProductVariant
	err := tx.WithContext(ctx).
		Where("warehouse_id = ? AND sku = ?", warehouseId, sku).
		First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindVariantByToken matches a scanned token against sku, upc, or barcode of
// any catalog variant. Used for the "known product, not on this PO" lookup.
func FindVariantByToken(tx *gorm.DB, ctx context.Context, warehouseId string, token string) (*ProductVariant, error) {
	var variant ProductVariant
	err := tx.WithContext(ctx).
		Where("warehouse_id = ?", warehouseId).
		Where("sku = ? OR (upc <> '' AND upc = ?) OR (barcode <> '' AND barcode = ?)", token, token, token).
		First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func FetchVariantsById(tx *gorm.DB, ctx context.Context, ids []int) (map[int]*ProductVariant, error) {
	result := make(map[int]*ProductVariant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var variants []*ProductVariant
	if err := tx.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&variants).Error; err != nil {
		return nil, err
	}
	for _, v := range variants {
		result[v.ID] = v
	}
	return result, nil
}
