package transfer

import (
	"time"

	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/google/uuid"
)

// CreateTransferInput requests a new transfer between two branches
type CreateTransferInput struct {
	SenderBranchID   uuid.UUID
	ReceiverBranchID uuid.UUID
	Type             stock.Category
	Items            []transfer.ItemInput
	Notes            string
	Actor            string
	OccurredAt       time.Time
}

// ReceiveTransferInput closes a transfer with counted quantities.
// Items missing from Received count as fully received.
type ReceiveTransferInput struct {
	TransferID uuid.UUID
	Received   []transfer.Receipt
	Actor      string
	OccurredAt time.Time
}
