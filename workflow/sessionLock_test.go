package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

// NOTE: These tests are intentionally DB-free. They validate the lock gate
// semantics in isolation: unlocked sessions are open, holders pass, fresh
// foreign locks conflict, and stale locks are silently taken over.

func lockedSession(holder int, lockedAt time.Time) *models.ReceivingSession {
	return &models.ReceivingSession{
		ID:       1,
		Status:   models.ReceivingStatusInProgress,
		LockedBy: &holder,
		LockedAt: &lockedAt,
	}
}

func TestCheckSessionLock_UnlockedSessionIsOpen(t *testing.T) {
	session := &models.ReceivingSession{ID: 1, Status: models.ReceivingStatusInProgress}
	if err := CheckSessionLock(session, 7, time.Now()); err != nil {
		t.Fatalf("expected pass on unlocked session, got %v", err)
	}
}

func TestCheckSessionLock_HolderAlwaysPasses(t *testing.T) {
	now := time.Now()
	session := lockedSession(7, now)
	if err := CheckSessionLock(session, 7, now); err != nil {
		t.Fatalf("expected holder to pass, got %v", err)
	}
}

func TestCheckSessionLock_FreshForeignLockConflicts(t *testing.T) {
	now := time.Now()
	session := lockedSession(7, now.Add(-time.Minute))
	err := CheckSessionLock(session, 9, now)
	if err == nil {
		t.Fatal("expected lock conflict")
	}
	if !errors.Is(err, utils.ErrorLockConflict) {
		t.Fatalf("expected ErrorLockConflict, got %v", err)
	}
}

func TestCheckSessionLock_StaleLockIsTakenOver(t *testing.T) {
	now := time.Now()
	session := lockedSession(7, now.Add(-SessionLockTimeout-time.Second))
	if err := CheckSessionLock(session, 9, now); err != nil {
		t.Fatalf("expected stale lock takeover, got %v", err)
	}
}

// A lock aged exactly to the timeout has not yet expired; takeover requires
// strictly more than five minutes of silence.
func TestCheckSessionLock_BoundaryStillHeld(t *testing.T) {
	now := time.Now()
	session := lockedSession(7, now.Add(-SessionLockTimeout))
	if err := CheckSessionLock(session, 9, now); !errors.Is(err, utils.ErrorLockConflict) {
		t.Fatalf("expected conflict at the exact timeout boundary, got %v", err)
	}
}

// A second device owned by a user whose lock went stale: four minutes idle is
// still a conflict for others, six minutes is open season.
func TestCheckSessionLock_TakeoverTiming(t *testing.T) {
	now := time.Now()

	fourIdle := lockedSession(7, now.Add(-4*time.Minute))
	if err := CheckSessionLock(fourIdle, 9, now); !errors.Is(err, utils.ErrorLockConflict) {
		t.Fatalf("4 minutes idle: expected conflict, got %v", err)
	}

	sixIdle := lockedSession(7, now.Add(-6*time.Minute))
	if err := CheckSessionLock(sixIdle, 9, now); err != nil {
		t.Fatalf("6 minutes idle: expected takeover, got %v", err)
	}

	// The original holder passes regardless of age.
	if err := CheckSessionLock(sixIdle, 7, now); err != nil {
		t.Fatalf("holder blocked on own stale lock: %v", err)
	}
}
