package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"gorm.io/gorm"
)

type QuantityDelta struct {
	LineId int `json:"line_id" binding:"required"`
	Delta  int `json:"delta"`
}

type BatchQuantityUpdate struct {
	Updates         []QuantityDelta `json:"updates" binding:"required"`
	ExpectedVersion *int            `json:"expected_version"`
}

type LineUpdateResult struct {
	LineId          int  `json:"line_id"`
	QuantityCounted int  `json:"quantity_counted"`
	Variance        int  `json:"variance"`
	IsComplete      bool `json:"is_complete"`
	IsOverage       bool `json:"is_overage"`
}

type BatchUpdateResult struct {
	SessionId int                `json:"session_id"`
	Version   int                `json:"version"`
	Lines     []LineUpdateResult `json:"lines"`
}

// applyCountDelta clamps at zero: a delta driving the count negative leaves it
// at zero rather than failing the batch.
func applyCountDelta(current int, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}

// BatchUpdateQuantities applies a set of per-line deltas as one atomic unit.
// Scanners accumulate taps client-side and flush them here on a short timer;
// the contract is atomic-batch, reject-wholesale-on-conflict.
//
// When ExpectedVersion is supplied and does not equal the session's current
// version, the whole batch is rejected with a version conflict and nothing is
// applied. The session version advances by exactly 1 per accepted batch, not
// per line, and the lock timestamp is refreshed alongside.
func BatchUpdateQuantities(ctx context.Context, sessionId int, input *BatchQuantityUpdate) (*BatchUpdateResult, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if input == nil || len(input.Updates) == 0 {
		return nil, validationError("at least one quantity update is required")
	}

	var result *BatchUpdateResult

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.Status != models.ReceivingStatusInProgress {
			return preconditionError("cannot update counts: session is %s", session.Status)
		}
		now := time.Now().UTC()
		if err := CheckSessionLock(session, userId, now); err != nil {
			return err
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != session.Version {
			return versionConflictError(session.Version, *input.ExpectedVersion)
		}

		linesById := make(map[int]*models.ReceivingLine, len(session.Lines))
		for i := range session.Lines {
			linesById[session.Lines[i].ID] = &session.Lines[i]
		}

		lineResults := make([]LineUpdateResult, 0, len(input.Updates))
		for _, update := range input.Updates {
			line, ok := linesById[update.LineId]
			if !ok {
				return notFoundError("line %d on session %d", update.LineId, sessionId)
			}

			oldCount := line.QuantityCounted
			newCount := applyCountDelta(oldCount, update.Delta)
			variance := newCount - line.QuantityExpected

			err = tx.Model(&models.ReceivingLine{}).
				Where("id = ?", line.ID).
				Updates(map[string]interface{}{
					"quantity_counted": newCount,
					"variance":         variance,
				}).Error
			if err != nil {
				return err
			}
			line.QuantityCounted = newCount
			line.Variance = variance

			err = models.SaveAuditEntry(tx, "receiving_line", line.ID, "QUANTITY_DELTA",
				map[string]interface{}{
					"session_id": session.ID,
					"sku":        line.Sku,
					"delta":      update.Delta,
					"old_count":  oldCount,
					"new_count":  newCount,
				})
			if err != nil {
				return err
			}

			lineResults = append(lineResults, LineUpdateResult{
				LineId:          line.ID,
				QuantityCounted: newCount,
				Variance:        variance,
				IsComplete:      line.IsComplete(),
				IsOverage:       line.IsOverage(),
			})
		}

		// Guarded bump: two batches racing past the in-memory check produce
		// exactly one winner here and one version-conflict loser.
		bump := tx.Model(&models.ReceivingSession{}).
			Where("id = ? AND version = ?", session.ID, session.Version).
			Updates(map[string]interface{}{
				"version":    session.Version + 1,
				"counted_by": userId,
				"locked_by":  userId,
				"locked_at":  now,
			})
		if bump.Error != nil {
			return bump.Error
		}
		if bump.RowsAffected != 1 {
			return versionConflictError(session.Version, session.Version)
		}

		result = &BatchUpdateResult{
			SessionId: session.ID,
			Version:   session.Version + 1,
			Lines:     lineResults,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetLineQuantity is the non-batched correction path: a manual override that
// sets an absolute count, bypassing delta semantics. Still lock- and
// status-gated, still audited, still bumps the session version.
func SetLineQuantity(ctx context.Context, sessionId int, lineId int, exactValue int) (*models.ReceivingLine, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if exactValue < 0 {
		return nil, validationError("quantity cannot be negative")
	}

	var updated *models.ReceivingLine

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.Status != models.ReceivingStatusInProgress {
			return preconditionError("cannot set quantity: session is %s", session.Status)
		}
		now := time.Now().UTC()
		if err := CheckSessionLock(session, userId, now); err != nil {
			return err
		}

		line, err := models.GetSessionLine(tx, ctx, session.ID, lineId)
		if err != nil {
			return err
		}

		oldCount := line.QuantityCounted
		variance := exactValue - line.QuantityExpected
		err = tx.Model(&models.ReceivingLine{}).
			Where("id = ?", line.ID).
			Updates(map[string]interface{}{
				"quantity_counted": exactValue,
				"variance":         variance,
			}).Error
		if err != nil {
			return err
		}
		line.QuantityCounted = exactValue
		line.Variance = variance

		err = models.SaveAuditEntry(tx, "receiving_line", line.ID, "QUANTITY_SET",
			map[string]interface{}{
				"session_id": session.ID,
				"sku":        line.Sku,
				"old_count":  oldCount,
				"new_count":  exactValue,
			})
		if err != nil {
			return err
		}

		bump := tx.Model(&models.ReceivingSession{}).
			Where("id = ? AND version = ?", session.ID, session.Version).
			Updates(map[string]interface{}{
				"version":    session.Version + 1,
				"counted_by": userId,
				"locked_by":  userId,
				"locked_at":  now,
			})
		if bump.Error != nil {
			return bump.Error
		}
		if bump.RowsAffected != 1 {
			return versionConflictError(session.Version, session.Version)
		}

		updated = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
