package transfer

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer event type constants
const (
	EventTypeSent      = "TransferSent"
	EventTypeReceived  = "TransferReceived"
	EventTypeCancelled = "TransferCancelled"
)

// SentEvent is raised once the sender has been deducted
type SentEvent struct {
	shared.BaseDomainEvent
	ReceiverBranchID uuid.UUID `json:"receiver_branch_id"`
	Type             string    `json:"transfer_type"`
	ItemCount        int       `json:"item_count"`
}

// NewSentEvent creates a SentEvent
func NewSentEvent(t *Transfer, actor string, at time.Time) *SentEvent {
	return &SentEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeSent, AggregateTypeTransfer, t.ID, t.SenderBranchID, actor, at),
		ReceiverBranchID: t.ReceiverBranchID,
		Type:             string(t.Type),
		ItemCount:        len(t.Items),
	}
}

// ReceivedEvent is raised once the receiver has been credited
type ReceivedEvent struct {
	shared.BaseDomainEvent
	SenderBranchID   uuid.UUID       `json:"sender_branch_id"`
	TotalDiscrepancy decimal.Decimal `json:"total_discrepancy"`
}

// NewReceivedEvent creates a ReceivedEvent
func NewReceivedEvent(t *Transfer, actor string, at time.Time) *ReceivedEvent {
	return &ReceivedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReceived, AggregateTypeTransfer, t.ID, t.ReceiverBranchID, actor, at),
		SenderBranchID:   t.SenderBranchID,
		TotalDiscrepancy: t.TotalDiscrepancy(),
	}
}

// CancelledEvent is raised when a transfer is abandoned before sending
type CancelledEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewCancelledEvent creates a CancelledEvent
func NewCancelledEvent(t *Transfer, reason, actor string, at time.Time) *CancelledEvent {
	return &CancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCancelled, AggregateTypeTransfer, t.ID, t.SenderBranchID, actor, at),
		Reason:          reason,
	}
}
