package models

import (
	"time"

	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryModel is the persistence model for the Inventory aggregate
type InventoryModel struct {
	AggregateModel
	BranchID      uuid.UUID `gorm:"type:uuid;not null;index:idx_inventory_branch_status,priority:1"`
	Type          string    `gorm:"type:varchar(30);not null"`
	InventoryDate time.Time `gorm:"not null"`
	Status        string    `gorm:"type:varchar(20);not null;index:idx_inventory_branch_status,priority:2"`
	CancelReason  string    `gorm:"type:text"`
	CreatedBy     string    `gorm:"type:varchar(100);not null"`
	CompletedBy   string    `gorm:"type:varchar(100)"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	// Associations
	Items []InventoryItemModel `gorm:"foreignKey:InventoryID;references:ID"`
}

// TableName returns the table name for GORM
func (InventoryModel) TableName() string {
	return "inventories"
}

// ToDomain converts the persistence model to a domain Inventory
func (m *InventoryModel) ToDomain() *stocktaking.Inventory {
	inv := &stocktaking.Inventory{
		BaseAggregateRoot: m.ToAggregateRoot(),
		BranchID:          m.BranchID,
		Type:              stock.Category(m.Type),
		InventoryDate:     m.InventoryDate,
		Status:            stocktaking.Status(m.Status),
		CancelReason:      m.CancelReason,
		CreatedBy:         m.CreatedBy,
		CompletedBy:       m.CompletedBy,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		Items:             make([]stocktaking.Item, len(m.Items)),
	}
	for i, it := range m.Items {
		inv.Items[i] = stocktaking.Item{
			ID:               it.ID,
			InventoryID:      it.InventoryID,
			Item:             stock.ItemRef{Kind: stock.ItemKind(it.ItemKind), ID: it.ItemID},
			Unit:             it.Unit,
			ExpectedQuantity: it.ExpectedQuantity,
			ActualQuantity:   it.ActualQuantity,
			Discrepancy:      it.Discrepancy,
			AdjustmentID:     it.AdjustmentID,
		}
	}
	return inv
}

// InventoryModelFromDomain creates a new persistence model from a domain Inventory
func InventoryModelFromDomain(inv *stocktaking.Inventory) *InventoryModel {
	m := &InventoryModel{
		BranchID:      inv.BranchID,
		Type:          string(inv.Type),
		InventoryDate: inv.InventoryDate,
		Status:        string(inv.Status),
		CancelReason:  inv.CancelReason,
		CreatedBy:     inv.CreatedBy,
		CompletedBy:   inv.CompletedBy,
		StartedAt:     inv.StartedAt,
		CompletedAt:   inv.CompletedAt,
		CancelledAt:   inv.CancelledAt,
		Items:         make([]InventoryItemModel, len(inv.Items)),
	}
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	for i, it := range inv.Items {
		m.Items[i] = InventoryItemModel{
			ID:               it.ID,
			InventoryID:      inv.ID,
			Position:         i,
			ItemKind:         string(it.Item.Kind),
			ItemID:           it.Item.ID,
			Unit:             it.Unit,
			ExpectedQuantity: it.ExpectedQuantity,
			ActualQuantity:   it.ActualQuantity,
			Discrepancy:      it.Discrepancy,
			AdjustmentID:     it.AdjustmentID,
		}
	}
	return m
}

// InventoryItemModel is the book and counted quantity of one item
type InventoryItemModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key"`
	InventoryID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	Position         int              `gorm:"not null"`
	ItemKind         string           `gorm:"type:varchar(20);not null"`
	ItemID           uuid.UUID        `gorm:"type:uuid;not null"`
	Unit             string           `gorm:"type:varchar(20);not null"`
	ExpectedQuantity decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	ActualQuantity   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Discrepancy      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	AdjustmentID     *uuid.UUID       `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (InventoryItemModel) TableName() string {
	return "inventory_items"
}
