package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceivingSession is the aggregate root for one purchase order count in
// flight. It carries two independent concurrency gates which must always be
// read and written inside the same transaction:
//   - LockedBy/LockedAt: advisory single-owner count lock (pessimistic)
//   - Version: optimistic token presented by batch quantity updates
type ReceivingSession struct {
	ID                  int                    `gorm:"primary_key" json:"id"`
	PublicId            string                 `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	WarehouseId         string                 `gorm:"index;not null" json:"warehouse_id"`
	PoId                string                 `gorm:"index;size:100;not null" json:"po_id"`
	PoReference         string                 `gorm:"size:255" json:"po_reference"`
	VendorName          string                 `gorm:"size:255" json:"vendor_name"`
	Status              ReceivingSessionStatus `gorm:"type:enum('IN_PROGRESS','SUBMITTED','APPROVED','REJECTED');not null" json:"status"`
	Version             int                    `gorm:"not null;default:1" json:"version"`
	LockedBy            *int                   `gorm:"index" json:"locked_by"`
	LockedAt            *time.Time             `json:"locked_at"`
	CountedBy           int                    `gorm:"index" json:"counted_by"`
	ReceivingLocationId int                    `gorm:"not null" json:"receiving_location_id"`
	AssignedTo          *int                   `json:"assigned_to"`
	SubmittedAt         *time.Time             `json:"submitted_at"`
	ApprovedAt          *time.Time             `json:"approved_at"`
	ApprovedBy          *int                   `json:"approved_by"`
	RejectionReason     string                 `gorm:"type:text" json:"rejection_reason"`
	PutawayTaskId       *int                   `json:"putaway_task_id"`
	Lines               []ReceivingLine        `json:"lines"`
	CreatedAt           time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

type ReceivingLine struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	ReceivingSessionId int             `gorm:"index;not null" json:"receiving_session_id"`
	Sku                string          `gorm:"index;size:100;not null" json:"sku"`
	ProductName        string          `gorm:"size:255" json:"product_name"`
	ProductVariantId   *int            `gorm:"index" json:"product_variant_id"`
	QuantityExpected   int             `gorm:"not null;default:0" json:"quantity_expected"`
	QuantityCounted    int             `gorm:"not null;default:0" json:"quantity_counted"`
	QuantityDamaged    int             `gorm:"not null;default:0" json:"quantity_damaged"`
	Variance           int             `gorm:"not null;default:0" json:"variance"`
	LotNumber          string          `gorm:"size:100" json:"lot_number"`
	LotExpiry          *time.Time      `json:"lot_expiry"`
	GeneratedBarcode   string          `gorm:"index;size:100" json:"generated_barcode"`
	UnitCost           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	ScanCount          int             `gorm:"not null;default:0" json:"scan_count"`
	LastScannedAt      *time.Time      `json:"last_scanned_at"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l ReceivingLine) IsComplete() bool {
	return l.QuantityCounted >= l.QuantityExpected
}

func (l ReceivingLine) IsOverage() bool {
	return l.QuantityCounted > l.QuantityExpected
}

type NewExpectedItem struct {
	Sku              string          `json:"sku" binding:"required"`
	Name             string          `json:"name"`
	QuantityExpected int             `json:"quantity_expected" binding:"required"`
	LotNumber        string          `json:"lot_number"`
	LotExpiry        *time.Time      `json:"lot_expiry"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
}

type NewReceivingSession struct {
	PoId          string            `json:"po_id" binding:"required"`
	PoReference   string            `json:"po_reference"`
	VendorName    string            `json:"vendor_name"`
	LocationId    int               `json:"location_id"`
	ExpectedItems []NewExpectedItem `json:"expected_items" binding:"required"`
}

// ReceivingSummary is a derived projection recomputed on read.
type ReceivingSummary struct {
	TotalExpected     int             `json:"total_expected"`
	TotalCounted      int             `json:"total_counted"`
	TotalDamaged      int             `json:"total_damaged"`
	LinesTotal        int             `json:"lines_total"`
	LinesComplete     int             `json:"lines_complete"`
	LinesWithVariance int             `json:"lines_with_variance"`
	ExpectedValue     decimal.Decimal `json:"expected_value"`
	CountedValue      decimal.Decimal `json:"counted_value"`
}

func SummarizeLines(lines []ReceivingLine) ReceivingSummary {
	summary := ReceivingSummary{
		LinesTotal:    len(lines),
		ExpectedValue: decimal.Zero,
		CountedValue:  decimal.Zero,
	}
	for _, line := range lines {
		summary.TotalExpected += line.QuantityExpected
		summary.TotalCounted += line.QuantityCounted
		summary.TotalDamaged += line.QuantityDamaged
		if line.IsComplete() {
			summary.LinesComplete++
		}
		if line.Variance != 0 {
			summary.LinesWithVariance++
		}
		summary.ExpectedValue = summary.ExpectedValue.Add(line.UnitCost.Mul(decimal.NewFromInt(int64(line.QuantityExpected))))
		summary.CountedValue = summary.CountedValue.Add(line.UnitCost.Mul(decimal.NewFromInt(int64(line.QuantityCounted))))
	}
	return summary
}

// FindActiveSessionByPO returns the session occupying the active slot for the
// purchase order, or nil when the slot is free.
func FindActiveSessionByPO(tx *gorm.DB, ctx context.Context, warehouseId string, poId string) (*ReceivingSession, error) {
	var session ReceivingSession
	err := tx.WithContext(ctx).Preload("Lines").
		Where("warehouse_id = ? AND po_id = ? AND status IN ?", warehouseId, poId,
			[]ReceivingSessionStatus{ReceivingStatusInProgress, ReceivingStatusSubmitted}).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// may return RecordNotFound
func GetSessionWithLines(tx *gorm.DB, ctx context.Context, warehouseId string, id int) (*ReceivingSession, error) {
	var session ReceivingSession
	err := tx.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("receiving_lines.id")
	}).
		Where("warehouse_id = ?", warehouseId).
		First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: receiving session %d", utils.ErrorRecordNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func GetReceivingSessionById(ctx context.Context, id int) (*ReceivingSession, error) {
	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}
	return GetSessionWithLines(config.GetDB(), ctx, warehouseId, id)
}

func GetSessionLine(tx *gorm.DB, ctx context.Context, sessionId int, lineId int) (*ReceivingLine, error) {
	var line ReceivingLine
	err := tx.WithContext(ctx).
		Where("receiving_session_id = ?", sessionId).
		First(&line, lineId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: line %d on session %d", utils.ErrorRecordNotFound, lineId, sessionId)
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}
