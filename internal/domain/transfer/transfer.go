package transfer

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeTransfer is the aggregate type for transfers
const AggregateTypeTransfer = "Transfer"

// ErrSameBranchTransfer is returned when sender and receiver are the same branch
var ErrSameBranchTransfer = shared.NewDomainError("SAME_BRANCH_TRANSFER", "Sender and receiver branch must differ")

// Status represents the lifecycle of a transfer
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusCreated:
		return target == StatusInTransit || target == StatusCancelled
	case StatusInTransit:
		return target == StatusReceived
	case StatusReceived, StatusCancelled:
		return false
	}
	return false
}

// Item is one line of a transfer. Invariant: QuantitySent == QuantityReceived + Discrepancy once received.
type Item struct {
	ID               uuid.UUID
	TransferID       uuid.UUID
	Item             stock.ItemRef
	Unit             string
	QuantitySent     decimal.Decimal
	QuantityReceived *decimal.Decimal
	Discrepancy      decimal.Decimal
	// Lots consumed at the sender for product items, oldest first
	Allocations []stock.LotAllocation
}

// WholeUnits returns the sent quantity as product units
func (i *Item) WholeUnits() int64 {
	return i.QuantitySent.IntPart()
}

// ItemInput describes a requested transfer line
type ItemInput struct {
	Item     stock.ItemRef
	Quantity decimal.Decimal
	Unit     string
}

// Receipt is the counted quantity received for one transfer item.
// ItemID is either the transfer line ID or the ingredient or recipe ID it carries.
type Receipt struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

// Transfer moves ingredients or products from one branch to another in two phases
type Transfer struct {
	shared.BaseAggregateRoot
	SenderBranchID   uuid.UUID
	ReceiverBranchID uuid.UUID
	Type             stock.Category
	Status           Status
	Notes            string
	CancelReason     string
	CreatedBy        string
	SentBy           string
	ReceivedBy       string
	SentAt           *time.Time
	ReceivedAt       *time.Time
	CancelledAt      *time.Time
	Items            []Item
}

// NewTransfer validates and creates a transfer in Created status
func NewTransfer(sender, receiver uuid.UUID, category stock.Category, items []ItemInput, notes, actor string, at time.Time) (*Transfer, error) {
	if sender == uuid.Nil || receiver == uuid.Nil {
		return nil, shared.NewValidationError("Sender and receiver branch are required")
	}
	if sender == receiver {
		return nil, ErrSameBranchTransfer
	}
	if !category.IsValid() {
		return nil, shared.NewValidationError("invalid transfer type " + string(category))
	}
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("Transfer must have at least one item")
	}

	t := &Transfer{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		SenderBranchID:    sender,
		ReceiverBranchID:  receiver,
		Type:              category,
		Status:            StatusCreated,
		Notes:             notes,
		CreatedBy:         actor,
	}
	seen := make(map[stock.ItemRef]struct{}, len(items))
	for _, in := range items {
		if err := in.Item.Validate(); err != nil {
			return nil, err
		}
		if !category.Accepts(in.Item) {
			return nil, shared.NewValidationError("item " + in.Item.String() + " does not match transfer type " + string(category))
		}
		if !in.Quantity.IsPositive() {
			return nil, shared.NewValidationError("Quantity sent must be positive")
		}
		if in.Item.IsProduct() && !in.Quantity.IsInteger() {
			return nil, shared.NewValidationError("Product quantities must be whole units")
		}
		if _, dup := seen[in.Item]; dup {
			return nil, shared.NewValidationError("item " + in.Item.String() + " appears more than once")
		}
		seen[in.Item] = struct{}{}
		t.Items = append(t.Items, Item{
			ID:           uuid.New(),
			TransferID:   t.ID,
			Item:         in.Item,
			Unit:         in.Unit,
			QuantitySent: in.Quantity,
			Discrepancy:  decimal.Zero,
		})
	}
	return t, nil
}

func (t *Transfer) transition(target Status) error {
	if !t.Status.CanTransitionTo(target) {
		return shared.NewInvalidStateTransitionError(AggregateTypeTransfer, t.ID, t.Status.String(), target.String())
	}
	return nil
}

// CheckCanSend fails unless the transfer is Created
func (t *Transfer) CheckCanSend() error {
	return t.transition(StatusInTransit)
}

// CheckCanReceive fails unless the transfer is InTransit
func (t *Transfer) CheckCanReceive() error {
	return t.transition(StatusReceived)
}

// MarkSent records the dispatch after the sender was deducted
func (t *Transfer) MarkSent(actor string, at time.Time) error {
	if err := t.transition(StatusInTransit); err != nil {
		return err
	}
	t.Status = StatusInTransit
	t.SentBy = actor
	t.SentAt = &at
	t.Touch(at)
	t.IncrementVersion()
	t.AddDomainEvent(NewSentEvent(t, actor, at))
	return nil
}

// RecordReceipts sets received quantity and discrepancy on every item.
// Items with no receipt are received in full.
func (t *Transfer) RecordReceipts(receipts []Receipt) error {
	if err := t.transition(StatusReceived); err != nil {
		return err
	}
	byID := make(map[uuid.UUID]decimal.Decimal, len(receipts))
	for _, r := range receipts {
		byID[r.ItemID] = r.Quantity
	}
	for id := range byID {
		if t.item(id) == nil {
			return shared.NewValidationError("item " + id.String() + " is not part of this transfer")
		}
	}
	for i := range t.Items {
		item := &t.Items[i]
		received := receiptFor(item, byID)
		if received.IsNegative() || received.GreaterThan(item.QuantitySent) {
			return shared.NewValidationError("Received quantity must be between 0 and the quantity sent")
		}
		if item.Item.IsProduct() && !received.IsInteger() {
			return shared.NewValidationError("Product quantities must be whole units")
		}
	}
	for i := range t.Items {
		item := &t.Items[i]
		received := receiptFor(item, byID)
		item.QuantityReceived = &received
		item.Discrepancy = item.QuantitySent.Sub(received)
	}
	return nil
}

// MarkReceived closes the transfer after the receiver was credited
func (t *Transfer) MarkReceived(actor string, at time.Time) error {
	if err := t.transition(StatusReceived); err != nil {
		return err
	}
	t.Status = StatusReceived
	t.ReceivedBy = actor
	t.ReceivedAt = &at
	t.Touch(at)
	t.IncrementVersion()
	t.AddDomainEvent(NewReceivedEvent(t, actor, at))
	return nil
}

// Cancel abandons a transfer that was never sent
func (t *Transfer) Cancel(reason, actor string, at time.Time) error {
	if err := t.transition(StatusCancelled); err != nil {
		return err
	}
	t.Status = StatusCancelled
	t.CancelReason = reason
	t.CancelledAt = &at
	t.Touch(at)
	t.IncrementVersion()
	t.AddDomainEvent(NewCancelledEvent(t, reason, actor, at))
	return nil
}

// TotalDiscrepancy sums item discrepancies
func (t *Transfer) TotalDiscrepancy() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.Discrepancy)
	}
	return total
}

// receiptFor returns the received quantity keyed by line ID or item ID; unlisted items arrived in full
func receiptFor(item *Item, byID map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	if q, ok := byID[item.ID]; ok {
		return q
	}
	if q, ok := byID[item.Item.ID]; ok {
		return q
	}
	return item.QuantitySent
}

func (t *Transfer) item(id uuid.UUID) *Item {
	for i := range t.Items {
		if t.Items[i].ID == id || t.Items[i].Item.ID == id {
			return &t.Items[i]
		}
	}
	return nil
}
