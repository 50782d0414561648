package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"gorm.io/gorm"
)

// RecordException appends an incident record to a line. DAMAGED additionally
// increments quantity_damaged; damage is intentionally not clamped against
// quantity_counted here — the approval step's good-quantity computation
// absorbs over-reported damage.
func RecordException(ctx context.Context, sessionId int, input *models.NewReceivingException) (*models.ReceivingException, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if input == nil || !input.Type.IsValid() {
		return nil, validationError("invalid exception type")
	}
	if input.Quantity <= 0 {
		return nil, validationError("exception quantity must be positive")
	}

	var exception *models.ReceivingException

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if !session.Status.IsActive() {
			return preconditionError("cannot record exception: session is %s", session.Status)
		}
		if err := CheckSessionLock(session, userId, time.Now().UTC()); err != nil {
			return err
		}

		line, err := models.GetSessionLine(tx, ctx, session.ID, input.LineId)
		if err != nil {
			return err
		}

		record := models.ReceivingException{
			WarehouseId:        warehouseId,
			ReceivingSessionId: session.ID,
			ReceivingLineId:    line.ID,
			Type:               input.Type,
			Quantity:           input.Quantity,
			Notes:              input.Notes,
			PhotoRef:           input.PhotoRef,
			ReportedBy:         userId,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		if input.Type == models.ExceptionTypeDamaged {
			err = tx.Model(&models.ReceivingLine{}).
				Where("id = ?", line.ID).
				Update("quantity_damaged", gorm.Expr("quantity_damaged + ?", input.Quantity)).Error
			if err != nil {
				return err
			}
		}

		err = models.SaveAuditEntry(tx, "receiving_line", line.ID, "EXCEPTION_RECORDED",
			map[string]interface{}{
				"session_id":   session.ID,
				"exception_id": record.ID,
				"type":         record.Type,
				"quantity":     record.Quantity,
				"sku":          line.Sku,
			})
		if err != nil {
			return err
		}

		exception = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return exception, nil
}
