package stocktaking

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
)

// Inventory event type constants
const (
	EventTypeCompleted = "InventoryCompleted"
	EventTypeCancelled = "InventoryCancelled"
)

// CompletedEvent is raised after counts were recorded and adjustments posted
type CompletedEvent struct {
	shared.BaseDomainEvent
	Type          string `json:"inventory_type"`
	ItemCount     int    `json:"item_count"`
	AdjustedCount int    `json:"adjusted_count"`
}

// NewCompletedEvent creates a CompletedEvent
func NewCompletedEvent(inv *Inventory, actor string, at time.Time) *CompletedEvent {
	return &CompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCompleted, AggregateTypeInventory, inv.ID, inv.BranchID, actor, at),
		Type:            string(inv.Type),
		ItemCount:       len(inv.Items),
		AdjustedCount:   len(inv.ItemsWithDiscrepancy()),
	}
}

// CancelledEvent is raised when a count is abandoned
type CancelledEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewCancelledEvent creates a CancelledEvent
func NewCancelledEvent(inv *Inventory, reason, actor string, at time.Time) *CancelledEvent {
	return &CancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCancelled, AggregateTypeInventory, inv.ID, inv.BranchID, actor, at),
		Reason:          reason,
	}
}
