package stocktaking

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInventory is the aggregate type for inventory counts
const AggregateTypeInventory = "Inventory"

// ErrIncompleteCount is returned when completing with uncounted items
var ErrIncompleteCount = shared.NewDomainError("INCOMPLETE_COUNT", "Every inventory item must be counted")

// Status represents the lifecycle of an inventory count
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusInProgress || target == StatusCancelled
	case StatusInProgress:
		return target == StatusCompleted || target == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// Item is the book and counted quantity of one stock item.
// Discrepancy is expected minus actual.
type Item struct {
	ID               uuid.UUID
	InventoryID      uuid.UUID
	Item             stock.ItemRef
	Unit             string
	ExpectedQuantity decimal.Decimal
	ActualQuantity   *decimal.Decimal
	Discrepancy      decimal.Decimal
	AdjustmentID     *uuid.UUID
}

// Counted reports whether an actual quantity was recorded
func (i *Item) Counted() bool {
	return i.ActualQuantity != nil
}

// HasDiscrepancy reports whether the count differs from the book
func (i *Item) HasDiscrepancy() bool {
	return i.Counted() && !i.Discrepancy.IsZero()
}

// Snapshot is a book quantity captured when the inventory is created
type Snapshot struct {
	Item     stock.ItemRef
	Unit     string
	Quantity decimal.Decimal
}

// Count is a physical count for one inventory item
type Count struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

// Inventory is a physical count of one stock category at a branch
type Inventory struct {
	shared.BaseAggregateRoot
	BranchID      uuid.UUID
	Type          stock.Category
	InventoryDate time.Time
	Status        Status
	CancelReason  string
	CreatedBy     string
	CompletedBy   string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	Items         []Item
}

// NewInventory creates a Draft inventory from the branch's book quantities
func NewInventory(branchID uuid.UUID, category stock.Category, date time.Time, snapshot []Snapshot, actor string, at time.Time) (*Inventory, error) {
	if branchID == uuid.Nil {
		return nil, shared.NewValidationError("Branch ID cannot be empty")
	}
	if !category.IsValid() {
		return nil, shared.NewValidationError("invalid inventory type " + string(category))
	}
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	inv := &Inventory{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		BranchID:          branchID,
		Type:              category,
		InventoryDate:     date,
		Status:            StatusDraft,
		CreatedBy:         actor,
		Items:             make([]Item, 0, len(snapshot)),
	}
	for _, s := range snapshot {
		if !category.Accepts(s.Item) {
			return nil, shared.NewValidationError("item " + s.Item.String() + " does not match inventory type " + string(category))
		}
		inv.Items = append(inv.Items, Item{
			ID:               uuid.New(),
			InventoryID:      inv.ID,
			Item:             s.Item,
			Unit:             s.Unit,
			ExpectedQuantity: s.Quantity,
			Discrepancy:      decimal.Zero,
		})
	}
	return inv, nil
}

func (inv *Inventory) transition(target Status) error {
	if !inv.Status.CanTransitionTo(target) {
		return shared.NewInvalidStateTransitionError(AggregateTypeInventory, inv.ID, inv.Status.String(), target.String())
	}
	return nil
}

// Start opens the count
func (inv *Inventory) Start(actor string, at time.Time) error {
	if err := inv.transition(StatusInProgress); err != nil {
		return err
	}
	inv.Status = StatusInProgress
	inv.StartedAt = &at
	inv.Touch(at)
	inv.IncrementVersion()
	return nil
}

// RecordCounts sets actual and discrepancy for every item; all items must be counted
func (inv *Inventory) RecordCounts(counts []Count) error {
	if err := inv.transition(StatusCompleted); err != nil {
		return err
	}
	byID := make(map[uuid.UUID]decimal.Decimal, len(counts))
	for _, c := range counts {
		if c.Quantity.IsNegative() {
			return shared.NewValidationError("Counted quantity cannot be negative")
		}
		idx := inv.itemIndex(c.ItemID)
		if idx < 0 {
			return shared.NewValidationError("item " + c.ItemID.String() + " is not part of this inventory")
		}
		if inv.Items[idx].Item.IsProduct() && !c.Quantity.IsInteger() {
			return shared.NewValidationError("Product counts must be whole units")
		}
		byID[c.ItemID] = c.Quantity
	}
	for _, item := range inv.Items {
		if _, ok := byID[item.ID]; !ok {
			return ErrIncompleteCount
		}
	}
	for i := range inv.Items {
		actual := byID[inv.Items[i].ID]
		inv.Items[i].ActualQuantity = &actual
		inv.Items[i].Discrepancy = inv.Items[i].ExpectedQuantity.Sub(actual)
	}
	return nil
}

// Complete closes the count after adjustments were posted
func (inv *Inventory) Complete(actor string, at time.Time) error {
	if err := inv.transition(StatusCompleted); err != nil {
		return err
	}
	for _, item := range inv.Items {
		if !item.Counted() {
			return ErrIncompleteCount
		}
	}
	inv.Status = StatusCompleted
	inv.CompletedBy = actor
	inv.CompletedAt = &at
	inv.Touch(at)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewCompletedEvent(inv, actor, at))
	return nil
}

// Cancel abandons the count
func (inv *Inventory) Cancel(reason, actor string, at time.Time) error {
	if err := inv.transition(StatusCancelled); err != nil {
		return err
	}
	inv.Status = StatusCancelled
	inv.CancelReason = reason
	inv.CancelledAt = &at
	inv.Touch(at)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewCancelledEvent(inv, reason, actor, at))
	return nil
}

// ItemsWithDiscrepancy returns counted items that differ from the book
func (inv *Inventory) ItemsWithDiscrepancy() []*Item {
	result := make([]*Item, 0)
	for i := range inv.Items {
		if inv.Items[i].HasDiscrepancy() {
			result = append(result, &inv.Items[i])
		}
	}
	return result
}

func (inv *Inventory) itemIndex(id uuid.UUID) int {
	for i := range inv.Items {
		if inv.Items[i].ID == id {
			return i
		}
	}
	return -1
}
