package models

type ReceivingSessionStatus string

const (
	ReceivingStatusInProgress ReceivingSessionStatus = "IN_PROGRESS"
	ReceivingStatusSubmitted  ReceivingSessionStatus = "SUBMITTED"
	ReceivingStatusApproved   ReceivingSessionStatus = "APPROVED"
	ReceivingStatusRejected   ReceivingSessionStatus = "REJECTED"
)

// IsActive reports whether the session still occupies the one-active-session
// slot for its purchase order.
func (s ReceivingSessionStatus) IsActive() bool {
	return s == ReceivingStatusInProgress || s == ReceivingStatusSubmitted
}

func (s ReceivingSessionStatus) IsTerminal() bool {
	return s == ReceivingStatusApproved
}

type ExceptionType string

const (
	ExceptionTypeDamaged   ExceptionType = "DAMAGED"
	ExceptionTypeWrongItem ExceptionType = "WRONG_ITEM"
	ExceptionTypeMissing   ExceptionType = "MISSING"
	ExceptionTypeOverage   ExceptionType = "OVERAGE"
)

func (t ExceptionType) IsValid() bool {
	switch t {
	case ExceptionTypeDamaged, ExceptionTypeWrongItem, ExceptionTypeMissing, ExceptionTypeOverage:
		return true
	}
	return false
}

type LocationType string

const (
	LocationTypeReceiving LocationType = "RECEIVING"
	LocationTypeStorage   LocationType = "STORAGE"
	LocationTypePicking   LocationType = "PICKING"
	LocationTypeDock      LocationType = "DOCK"
)

type UserRole string

const (
	RoleAdmin      UserRole = "A"
	RoleSupervisor UserRole = "S"
	RoleOperator   UserRole = "O"
)

// Elevated reports whether the role may be assigned reviews and approve or
// reject submitted sessions.
func (r UserRole) Elevated() bool {
	return r == RoleAdmin || r == RoleSupervisor
}

type InventoryStatus string

const (
	InventoryStatusAvailable InventoryStatus = "available"
)

type PutawayTaskStatus string

const (
	PutawayStatusPending    PutawayTaskStatus = "pending"
	PutawayStatusInProgress PutawayTaskStatus = "in_progress"
	PutawayStatusCompleted  PutawayTaskStatus = "completed"
)
