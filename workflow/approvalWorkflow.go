package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ApprovalResult reports what the approval materialized.
type ApprovalResult struct {
	Session        *models.ReceivingSession `json:"session"`
	PutawayTask    *models.PutawayTask      `json:"putaway_task,omitempty"`
	InventoryUnits []*models.InventoryUnit  `json:"inventory_units"`
	LinesReceived  int                      `json:"lines_received"`
	UnitsReceived  int                      `json:"units_received"`
	ReceivedValue  decimal.Decimal          `json:"received_value"`
}

// goodQuantity is the stock a line contributes at approval: counted minus
// damaged, floored at zero so over-reported damage can never destroy stock
// from other lines.
func goodQuantity(line models.ReceivingLine) int {
	good := line.QuantityCounted - line.QuantityDamaged
	if good < 0 {
		return 0
	}
	return good
}

// ApproveReceivingSession materializes a submitted count into durable state:
// one inventory upsert per line with good stock, one putaway task covering the
// created units, and the APPROVED stamp on the session. All writes share one
// transaction so a failure anywhere leaves nothing behind.
//
// Good quantity per line is counted minus damaged; lines at or below zero are
// skipped (exception handling deals with the damaged units separately). A
// redis lock keyed by purchase order serializes concurrent approvals so two
// reviewers cannot double-materialize the same PO.
func ApproveReceivingSession(ctx context.Context, sessionId int) (*ApprovalResult, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("workflow").Start(ctx, "ApproveReceivingSession")
	defer span.End()
	span.SetAttributes(attribute.Int("receiving.session_id", sessionId))

	// Cheap pre-read to learn the PO before taking the distributed lock.
	probe, err := models.GetSessionWithLines(config.GetDB(), ctx, warehouseId, sessionId)
	if err != nil {
		return nil, err
	}
	lock, err := utils.ObtainApprovalLock(ctx, probe.PoId, "approvalWorkflow.go", "ApproveReceivingSession")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			config.LogError(config.GetLogger(), "approvalWorkflow.go", "ApproveReceivingSession", "ReleaseApprovalLock", probe.PoId, err)
		}
	}()

	result := &ApprovalResult{ReceivedValue: decimal.Zero}
	var inventoryEvents []InventoryReceivedEvent

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock: the probe may be stale.
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.Status != models.ReceivingStatusSubmitted {
			return preconditionError("cannot approve: session is %s", session.Status)
		}

		now := time.Now().UTC()
		var items []models.PutawayTaskItem

		for _, line := range session.Lines {
			good := goodQuantity(line)
			if good <= 0 || line.ProductVariantId == nil {
				continue
			}

			unit, _, err := models.UpsertInventoryUnit(tx, ctx, warehouseId,
				*line.ProductVariantId, session.ReceivingLocationId, line.LotNumber, good)
			if err != nil {
				return err
			}

			items = append(items, models.PutawayTaskItem{
				Sequence:         len(items) + 1,
				InventoryUnitId:  unit.ID,
				ProductVariantId: *line.ProductVariantId,
				Sku:              line.Sku,
				Quantity:         good,
				FromLocationId:   session.ReceivingLocationId,
				LotNumber:        line.LotNumber,
			})

			result.InventoryUnits = append(result.InventoryUnits, unit)
			result.LinesReceived++
			result.UnitsReceived += good
			result.ReceivedValue = result.ReceivedValue.Add(line.UnitCost.Mul(decimal.NewFromInt(int64(good))))

			inventoryEvents = append(inventoryEvents, InventoryReceivedEvent{
				SessionId:        session.ID,
				PoId:             session.PoId,
				WarehouseId:      warehouseId,
				LineId:           line.ID,
				Sku:              line.Sku,
				ProductVariantId: *line.ProductVariantId,
				LocationId:       session.ReceivingLocationId,
				LotNumber:        line.LotNumber,
				GoodQuantity:     good,
				InventoryUnitId:  unit.ID,
				OccurredAt:       now,
			})
		}

		var task *models.PutawayTask
		if len(items) > 0 {
			taskNumber, err := models.NextPutawayTaskNumber(tx, ctx, warehouseId)
			if err != nil {
				return err
			}
			task = &models.PutawayTask{
				WarehouseId:        warehouseId,
				TaskNumber:         taskNumber,
				PoId:               session.PoId,
				ReceivingSessionId: session.ID,
				Status:             models.PutawayStatusPending,
				CreatedBy:          userId,
				Items:              items,
			}
			if err := tx.Create(task).Error; err != nil {
				return err
			}
			result.PutawayTask = task
		}

		updates := map[string]interface{}{
			"status":      models.ReceivingStatusApproved,
			"approved_at": now,
			"approved_by": userId,
			"locked_by":   nil,
			"locked_at":   nil,
		}
		if task != nil {
			updates["putaway_task_id"] = task.ID
		}
		err = tx.Model(&models.ReceivingSession{}).
			Where("id = ?", session.ID).
			Updates(updates).Error
		if err != nil {
			return err
		}
		session.Status = models.ReceivingStatusApproved
		session.ApprovedAt = &now
		session.ApprovedBy = &userId
		session.LockedBy = nil
		session.LockedAt = nil
		if task != nil {
			session.PutawayTaskId = &task.ID
		}
		result.Session = session

		auditPayload := map[string]interface{}{
			"po_id":          session.PoId,
			"lines_received": result.LinesReceived,
			"units_received": result.UnitsReceived,
			"received_value": result.ReceivedValue,
		}
		if task != nil {
			auditPayload["putaway_task_number"] = task.TaskNumber
		}
		return models.SaveAuditEntry(tx, "receiving_session", session.ID, "SESSION_APPROVED", auditPayload)
	})
	if err != nil {
		return nil, err
	}

	// The cached barcode index for the approved revision is now stale.
	cacheKey := fmt.Sprintf("recvIndex:%d:v%d", result.Session.ID, result.Session.Version)
	if err := config.RemoveRedisKey(cacheKey); err != nil {
		config.LogError(config.GetLogger(), "approvalWorkflow.go", "ApproveReceivingSession", "DropBarcodeIndexCache", cacheKey, err)
	}

	for _, event := range inventoryEvents {
		emitReceivingEvent(ctx, EventInventoryReceived, event)
	}
	approvedEvent := sessionEventOf(result.Session, userId)
	approvedEvent.PutawayTaskId = utils.DereferencePtr(result.Session.PutawayTaskId)
	emitReceivingEvent(ctx, EventSessionApproved, approvedEvent)
	return result, nil
}
