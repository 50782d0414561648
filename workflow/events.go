package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
)

// Domain event types consumed by live dashboards and backorder checks.
const (
	EventSessionStarted    = "wms.receiving.session-started"
	EventSessionSubmitted  = "wms.receiving.session-submitted"
	EventSessionApproved   = "wms.receiving.session-approved"
	EventSessionRejected   = "wms.receiving.session-rejected"
	EventSessionReopened   = "wms.receiving.session-reopened"
	EventInventoryReceived = "wms.receiving.inventory-received"
)

type SessionEvent struct {
	SessionId     int       `json:"session_id"`
	PublicId      string    `json:"public_id"`
	PoId          string    `json:"po_id"`
	WarehouseId   string    `json:"warehouse_id"`
	Status        string    `json:"status"`
	ActorId       int       `json:"actor_id"`
	PutawayTaskId int       `json:"putaway_task_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type InventoryReceivedEvent struct {
	SessionId        int       `json:"session_id"`
	PoId             string    `json:"po_id"`
	WarehouseId      string    `json:"warehouse_id"`
	LineId           int       `json:"line_id"`
	Sku              string    `json:"sku"`
	ProductVariantId int       `json:"product_variant_id"`
	LocationId       int       `json:"location_id"`
	LotNumber        string    `json:"lot_number"`
	GoodQuantity     int       `json:"good_quantity"`
	InventoryUnitId  int       `json:"inventory_unit_id"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// emitReceivingEvent publishes one event AFTER the enclosing transaction has
// committed. Publish failures are logged and swallowed; event delivery is
// best-effort and must never fail the business operation.
func emitReceivingEvent(ctx context.Context, eventType string, payload any) {
	logger := config.GetLogger()
	if _, err := config.PublishReceivingEvent(ctx, eventType, payload); err != nil {
		config.LogError(logger, "events.go", "emitReceivingEvent", eventType, payload, err)
	}
}
