package utils

import (
	"context"

	"github.com/mmdatafocus/warehouse_backend/config"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (ctx's warehouse_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, warehouseId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("warehouse_id = ?", warehouseId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (ctx's warehouse_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, warehouseId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("warehouse_id = ?", warehouseId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}

// check if id exists, using ctx's warehouse_id in WHERE, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, warehouseId string, id interface{}) error {

	var model T
	var count int64
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&model).
		Where("warehouse_id = ? AND id = ?", warehouseId, id).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, warehouseId string, column string, value interface{}, exceptId int) error {
	var model T
	var count int64
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model).
		Where("warehouse_id = ? AND "+column+" = ?", warehouseId, value)
	if exceptId != 0 {
		dbCtx = dbCtx.Where("id <> ?", exceptId)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrorValidation
	}
	return nil
}
