package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

// PutawayTask is the work order directing staff to move newly received stock
// from the receiving dock into storage. Created only by session approval.
type PutawayTask struct {
	ID                 int               `gorm:"primary_key" json:"id"`
	WarehouseId        string            `gorm:"index;not null" json:"warehouse_id"`
	TaskNumber         string            `gorm:"size:50;uniqueIndex;not null" json:"task_number"`
	PoId               string            `gorm:"index;size:100;not null" json:"po_id"`
	ReceivingSessionId int               `gorm:"index;not null" json:"receiving_session_id"`
	Status             PutawayTaskStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	CreatedBy          int               `gorm:"index" json:"created_by"`
	Items              []PutawayTaskItem `json:"items"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type PutawayTaskItem struct {
	ID               int    `gorm:"primary_key" json:"id"`
	PutawayTaskId    int    `gorm:"index;not null" json:"putaway_task_id"`
	Sequence         int    `gorm:"not null" json:"sequence"`
	InventoryUnitId  int    `gorm:"index;not null" json:"inventory_unit_id"`
	ProductVariantId int    `gorm:"index;not null" json:"product_variant_id"`
	Sku              string `gorm:"size:100;not null" json:"sku"`
	Quantity         int    `gorm:"not null" json:"quantity"`
	FromLocationId   int    `gorm:"not null" json:"from_location_id"`
	LotNumber        string `gorm:"size:100" json:"lot_number"`
}

// NextPutawayTaskNumber allocates the next task number. The redis counter is
// the fast path; the highest number already issued is the floor, so a flushed
// or cold counter resyncs past it instead of replaying a number the
// task_number unique index has already seen.
func NextPutawayTaskNumber(tx *gorm.DB, ctx context.Context, warehouseId string) (string, error) {

	floor, err := lastIssuedTaskSeq(tx, ctx, warehouseId)
	if err != nil {
		return "", err
	}

	key := "putawayTaskSeq:" + warehouseId
	seq, err := config.GetRedisCounter(ctx, key)
	if err != nil {
		return "", err
	}
	if seq <= floor {
		seq = floor + 1
		if err := config.SetRedisValue(key, strconv.FormatInt(seq, 10), 0); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("PUT-%06d", seq), nil
}

func lastIssuedTaskSeq(tx *gorm.DB, ctx context.Context, warehouseId string) (int64, error) {
	var numbers []string
	err := tx.WithContext(ctx).Model(&PutawayTask{}).
		Where("warehouse_id = ?", warehouseId).
		Order("task_number DESC").
		Limit(1).
		Pluck("task_number", &numbers).Error
	if err != nil {
		return 0, err
	}
	if len(numbers) == 0 {
		return 0, nil
	}
	return taskNumberSeq(numbers[0]), nil
}

// taskNumberSeq extracts the numeric sequence from a PUT-%06d task number.
// Unparseable input counts as zero.
func taskNumberSeq(taskNumber string) int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(taskNumber, "PUT-"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func GetPutawayTask(ctx context.Context, id int) (*PutawayTask, error) {

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}

	db := config.GetDB()
	var task PutawayTask
	err := db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("putaway_task_items.sequence")
	}).
		Where("warehouse_id = ?", warehouseId).
		First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: putaway task %d", utils.ErrorRecordNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}
