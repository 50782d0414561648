package utils

import "errors"

// Failure taxonomy for the receiving engine. Callers match with errors.Is and
// map to transport codes at the API boundary; reason strings travel in the
// wrapped message.
var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrorPreconditionFailed: the session is not in the status the requested
	// transition needs (e.g. approving a session that was never submitted).
	ErrorPreconditionFailed = errors.New("precondition failed")

	// ErrorLockConflict: another user holds a live count lock on the session.
	ErrorLockConflict = errors.New("session locked by another user")

	// ErrorVersionConflict: a batch update presented a stale version token.
	// The caller must refetch and rebuild its queued deltas; nothing was applied.
	ErrorVersionConflict = errors.New("session version conflict")

	ErrorValidation = errors.New("validation failed")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
