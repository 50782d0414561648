package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

// SessionLockTimeout is how long a count lock survives without a heartbeat
// before any other user may take the session over. This is the system's only
// timeout.
const SessionLockTimeout = 5 * time.Minute

// CheckSessionLock is the pessimistic gate for session-level actions.
// It passes when the session is unlocked, when the actor already holds the
// lock, or when the lock has aged past SessionLockTimeout (stale-lock
// takeover; no explicit steal step). Reads are never gated.
func CheckSessionLock(session *models.ReceivingSession, userId int, now time.Time) error {
	if session.LockedBy == nil {
		return nil
	}
	if *session.LockedBy == userId {
		return nil
	}
	if session.LockedAt == nil || now.Sub(*session.LockedAt) > SessionLockTimeout {
		return nil
	}
	return fmt.Errorf("%w: held by user %d", utils.ErrorLockConflict, *session.LockedBy)
}

// stampSessionLock unconditionally assigns the lock to the actor.
// Callers gate with CheckSessionLock first when takeover rules apply.
func stampSessionLock(tx *gorm.DB, session *models.ReceivingSession, userId int, now time.Time) error {
	err := tx.Model(&models.ReceivingSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{"locked_by": userId, "locked_at": now}).Error
	if err != nil {
		return err
	}
	session.LockedBy = &userId
	session.LockedAt = &now
	return nil
}

// HeartbeatSessionLock refreshes the lock to the actor. Called on
// resume-viewing and by periodic caller-side heartbeats so an idle scanner
// screen does not lose its lock mid-count.
func HeartbeatSessionLock(ctx context.Context, sessionId int) error {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		return stampSessionLock(tx, session, userId, time.Now().UTC())
	})
}

// ReleaseSessionLock clears the lock only when the actor currently holds it.
// Used on submit and on explicit leave-page signals.
func ReleaseSessionLock(ctx context.Context, sessionId int) error {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.LockedBy == nil || *session.LockedBy != userId {
			return nil
		}
		return tx.Model(&models.ReceivingSession{}).
			Where("id = ? AND locked_by = ?", session.ID, userId).
			Updates(map[string]interface{}{"locked_by": nil, "locked_at": nil}).Error
	})
}
