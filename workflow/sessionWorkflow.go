package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

// SessionPayload is the full read model for one session: the aggregate, a
// derived summary, and the token -> line lookup table used by scanners.
type SessionPayload struct {
	Session      *models.ReceivingSession `json:"session"`
	Summary      models.ReceivingSummary  `json:"summary"`
	BarcodeIndex map[string]int           `json:"barcode_index"`
	Resumed      bool                     `json:"resumed,omitempty"`
}

func actorFromContext(ctx context.Context) (string, int, error) {
	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return "", 0, errors.New("warehouse id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return "", 0, errors.New("user id is required")
	}
	return warehouseId, userId, nil
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", utils.ErrorValidation, fmt.Sprintf(format, args...))
}

func preconditionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", utils.ErrorPreconditionFailed, fmt.Sprintf(format, args...))
}

func notFoundError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", utils.ErrorRecordNotFound, fmt.Sprintf(format, args...))
}

func versionConflictError(current int, presented int) error {
	return fmt.Errorf("%w: session moved on from version %d (presented %d); refetch and rebuild local deltas",
		utils.ErrorVersionConflict, current, presented)
}

// generateLineBarcode mints a scannable token for lines whose catalog variant
// carries no UPC or barcode. Uniqueness comes from the uuid tail.
func generateLineBarcode(sku string) string {
	tail := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return fmt.Sprintf("RCV-%s-%s", strings.ToUpper(sku), tail)
}

// StartReceivingSession starts a count for a purchase order, or resumes the
// existing active one: at most one session per PO may be IN_PROGRESS or
// SUBMITTED, so a second start against the same PO attempts to take or
// refresh the lock on the live session instead of creating a duplicate.
func StartReceivingSession(ctx context.Context, input *models.NewReceivingSession) (*SessionPayload, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if input == nil || len(input.ExpectedItems) == 0 {
		return nil, validationError("expected items are required")
	}
	for _, item := range input.ExpectedItems {
		if item.QuantityExpected <= 0 {
			return nil, validationError("expected quantity for %s must be positive", item.Sku)
		}
	}

	var payload *SessionPayload
	resumed := false

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := models.FindActiveSessionByPO(tx, ctx, warehouseId, input.PoId)
		if err != nil {
			return err
		}
		if existing != nil {
			now := time.Now().UTC()
			if err := CheckSessionLock(existing, userId, now); err != nil {
				return err
			}
			if existing.Status == models.ReceivingStatusInProgress {
				if err := stampSessionLock(tx, existing, userId, now); err != nil {
					return err
				}
			}
			err = models.SaveAuditEntry(tx, "receiving_session", existing.ID, "SESSION_RESUMED",
				map[string]interface{}{"po_id": existing.PoId, "status": existing.Status})
			if err != nil {
				return err
			}
			payload, err = buildSessionPayload(tx, ctx, existing)
			if err != nil {
				return err
			}
			resumed = true
			return nil
		}

		location, err := models.ResolveReceivingLocation(tx, ctx, warehouseId, input.LocationId)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		session := models.ReceivingSession{
			PublicId:            uuid.NewString(),
			WarehouseId:         warehouseId,
			PoId:                input.PoId,
			PoReference:         input.PoReference,
			VendorName:          input.VendorName,
			Status:              models.ReceivingStatusInProgress,
			Version:             1,
			LockedBy:            &userId,
			LockedAt:            &now,
			CountedBy:           userId,
			ReceivingLocationId: location.ID,
		}

		lines := make([]models.ReceivingLine, 0, len(input.ExpectedItems))
		for _, item := range input.ExpectedItems {
			line := models.ReceivingLine{
				Sku:              item.Sku,
				ProductName:      item.Name,
				QuantityExpected: item.QuantityExpected,
				Variance:         -item.QuantityExpected,
				LotNumber:        item.LotNumber,
				LotExpiry:        item.LotExpiry,
				UnitCost:         item.UnitCost,
			}

			variant, err := models.FindVariantBySku(tx, ctx, warehouseId, item.Sku)
			if err != nil {
				return err
			}
			if variant != nil {
				line.ProductVariantId = &variant.ID
				if line.ProductName == "" {
					line.ProductName = variant.Name
				}
				if line.UnitCost.IsZero() {
					line.UnitCost = variant.UnitCost
				}
				if variant.Upc == "" && variant.Barcode == "" {
					line.GeneratedBarcode = generateLineBarcode(item.Sku)
				}
			}
			lines = append(lines, line)
		}
		session.Lines = lines

		if err := tx.Create(&session).Error; err != nil {
			return err
		}

		summary := models.SummarizeLines(session.Lines)
		err = models.SaveAuditEntry(tx, "receiving_session", session.ID, "SESSION_STARTED",
			map[string]interface{}{
				"po_id":          session.PoId,
				"po_reference":   session.PoReference,
				"lines":          summary.LinesTotal,
				"total_expected": summary.TotalExpected,
				"expected_value": summary.ExpectedValue,
				"location_id":    location.ID,
			})
		if err != nil {
			return err
		}

		payload, err = buildSessionPayload(tx, ctx, &session)
		return err
	})
	if err != nil {
		return nil, err
	}

	payload.Resumed = resumed
	if !resumed {
		emitReceivingEvent(ctx, EventSessionStarted, sessionEventOf(payload.Session, userId))
	}
	return payload, nil
}

// GetReceivingSession returns the full read payload. No lock gate: any actor
// may view a locked session.
func GetReceivingSession(ctx context.Context, sessionId int) (*SessionPayload, error) {

	session, err := models.GetReceivingSessionById(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return buildSessionPayload(config.GetDB(), ctx, session)
}

// SubmitForApproval freezes the count and hands the session to a reviewer.
// Requires lock ownership, IN_PROGRESS, and at least one counted unit. The
// count lock is released so reviewers are never blocked by an idle scanner.
// checkSubmittableCounts rejects handing off an untouched session: at least
// one unit must have been counted before review makes sense.
func checkSubmittableCounts(summary models.ReceivingSummary) error {
	if summary.TotalCounted <= 0 {
		return validationError("cannot submit: no items counted")
	}
	return nil
}

func SubmitForApproval(ctx context.Context, sessionId int, assigneeId *int) (*models.ReceivingSession, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var session *models.ReceivingSession

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err = models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.Status != models.ReceivingStatusInProgress {
			return preconditionError("cannot submit: session is %s", session.Status)
		}
		now := time.Now().UTC()
		if err := CheckSessionLock(session, userId, now); err != nil {
			return err
		}
		summary := models.SummarizeLines(session.Lines)
		if err := checkSubmittableCounts(summary); err != nil {
			return err
		}
		if assigneeId != nil {
			if err := models.ValidateElevatedUser(ctx, *assigneeId); err != nil {
				return validationError("invalid assignee: %s", err.Error())
			}
		}

		err = tx.Model(&models.ReceivingSession{}).
			Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"status":       models.ReceivingStatusSubmitted,
				"submitted_at": now,
				"assigned_to":  assigneeId,
				"locked_by":    nil,
				"locked_at":    nil,
			}).Error
		if err != nil {
			return err
		}
		session.Status = models.ReceivingStatusSubmitted
		session.SubmittedAt = &now
		session.AssignedTo = assigneeId
		session.LockedBy = nil
		session.LockedAt = nil

		return models.SaveAuditEntry(tx, "receiving_session", session.ID, "SESSION_SUBMITTED",
			map[string]interface{}{
				"po_id":         session.PoId,
				"total_counted": summary.TotalCounted,
				"assigned_to":   assigneeId,
			})
	})
	if err != nil {
		return nil, err
	}

	emitReceivingEvent(ctx, EventSessionSubmitted, sessionEventOf(session, userId))
	return session, nil
}

// RejectReceivingSession sends a submitted session back with a reason; the
// counter may later reopen it. Role enforcement for the approver sits at the
// caller boundary; status is re-validated here inside the transaction.
func RejectReceivingSession(ctx context.Context, sessionId int, reason string) (*models.ReceivingSession, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("rejection reason is required")
	}

	var session *models.ReceivingSession

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err = models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.Status != models.ReceivingStatusSubmitted {
			return preconditionError("cannot reject: session is %s", session.Status)
		}

		err = tx.Model(&models.ReceivingSession{}).
			Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"status":           models.ReceivingStatusRejected,
				"rejection_reason": reason,
			}).Error
		if err != nil {
			return err
		}
		session.Status = models.ReceivingStatusRejected
		session.RejectionReason = reason

		return models.SaveAuditEntry(tx, "receiving_session", session.ID, "SESSION_REJECTED",
			map[string]interface{}{"po_id": session.PoId, "reason": reason})
	})
	if err != nil {
		return nil, err
	}

	emitReceivingEvent(ctx, EventSessionRejected, sessionEventOf(session, userId))
	return session, nil
}

// ReopenReceivingSession returns a rejected session to counting: approval and
// rejection fields are cleared, line counts survive untouched, and the lock
// moves to the reopening actor.
func ReopenReceivingSession(ctx context.Context, sessionId int) (*SessionPayload, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var payload *SessionPayload

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.Status != models.ReceivingStatusRejected {
			return preconditionError("cannot reopen: session is %s", session.Status)
		}

		now := time.Now().UTC()
		err = tx.Model(&models.ReceivingSession{}).
			Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"status":           models.ReceivingStatusInProgress,
				"rejection_reason": "",
				"submitted_at":     nil,
				"approved_at":      nil,
				"approved_by":      nil,
				"assigned_to":      nil,
				"locked_by":        userId,
				"locked_at":        now,
			}).Error
		if err != nil {
			return err
		}
		session.Status = models.ReceivingStatusInProgress
		session.RejectionReason = ""
		session.SubmittedAt = nil
		session.ApprovedAt = nil
		session.ApprovedBy = nil
		session.AssignedTo = nil
		session.LockedBy = &userId
		session.LockedAt = &now

		err = models.SaveAuditEntry(tx, "receiving_session", session.ID, "SESSION_REOPENED",
			map[string]interface{}{"po_id": session.PoId})
		if err != nil {
			return err
		}

		payload, err = buildSessionPayload(tx, ctx, session)
		return err
	})
	if err != nil {
		return nil, err
	}

	emitReceivingEvent(ctx, EventSessionReopened, sessionEventOf(payload.Session, userId))
	return payload, nil
}

func sessionEventOf(session *models.ReceivingSession, actorId int) SessionEvent {
	return SessionEvent{
		SessionId:   session.ID,
		PublicId:    session.PublicId,
		PoId:        session.PoId,
		WarehouseId: session.WarehouseId,
		Status:      string(session.Status),
		ActorId:     actorId,
		OccurredAt:  time.Now().UTC(),
	}
}

// buildSessionPayload assembles the read model. The barcode index is a
// derived projection cached in redis per (session, version) since it only
// changes when lines do.
func buildSessionPayload(tx *gorm.DB, ctx context.Context, session *models.ReceivingSession) (*SessionPayload, error) {

	payload := &SessionPayload{
		Session: session,
		Summary: models.SummarizeLines(session.Lines),
	}

	cacheKey := fmt.Sprintf("recvIndex:%d:v%d", session.ID, session.Version)
	index := make(map[string]int)
	found, err := config.GetRedisObject(cacheKey, &index)
	if err == nil && found {
		payload.BarcodeIndex = index
		return payload, nil
	}

	variants, err := lineVariants(tx, ctx, session.Lines)
	if err != nil {
		return nil, err
	}
	payload.BarcodeIndex = BuildBarcodeIndex(session.Lines, variants)

	if err := config.SetRedisObject(cacheKey, payload.BarcodeIndex, 10*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "sessionWorkflow.go", "buildSessionPayload", "CacheBarcodeIndex", cacheKey, err)
	}
	return payload, nil
}
