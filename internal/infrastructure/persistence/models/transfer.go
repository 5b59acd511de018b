package models

import (
	"time"

	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferModel is the persistence model for the Transfer aggregate
type TransferModel struct {
	AggregateModel
	SenderBranchID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ReceiverBranchID uuid.UUID `gorm:"type:uuid;not null;index"`
	Type             string    `gorm:"type:varchar(30);not null"`
	Status           string    `gorm:"type:varchar(20);not null;index"`
	Notes            string    `gorm:"type:text"`
	CancelReason     string    `gorm:"type:text"`
	CreatedBy        string    `gorm:"type:varchar(100);not null"`
	SentBy           string    `gorm:"type:varchar(100)"`
	ReceivedBy       string    `gorm:"type:varchar(100)"`
	SentAt           *time.Time
	ReceivedAt       *time.Time
	CancelledAt      *time.Time
	// Associations
	Items []TransferItemModel `gorm:"foreignKey:TransferID;references:ID"`
}

// TableName returns the table name for GORM
func (TransferModel) TableName() string {
	return "transfers"
}

// ToDomain converts the persistence model to a domain Transfer
func (m *TransferModel) ToDomain() *transfer.Transfer {
	t := &transfer.Transfer{
		BaseAggregateRoot: m.ToAggregateRoot(),
		SenderBranchID:    m.SenderBranchID,
		ReceiverBranchID:  m.ReceiverBranchID,
		Type:              stock.Category(m.Type),
		Status:            transfer.Status(m.Status),
		Notes:             m.Notes,
		CancelReason:      m.CancelReason,
		CreatedBy:         m.CreatedBy,
		SentBy:            m.SentBy,
		ReceivedBy:        m.ReceivedBy,
		SentAt:            m.SentAt,
		ReceivedAt:        m.ReceivedAt,
		CancelledAt:       m.CancelledAt,
		Items:             make([]transfer.Item, len(m.Items)),
	}
	for i := range m.Items {
		t.Items[i] = m.Items[i].ToDomain()
	}
	return t
}

// TransferModelFromDomain creates a new persistence model from a domain Transfer
func TransferModelFromDomain(t *transfer.Transfer) *TransferModel {
	m := &TransferModel{
		SenderBranchID:   t.SenderBranchID,
		ReceiverBranchID: t.ReceiverBranchID,
		Type:             string(t.Type),
		Status:           string(t.Status),
		Notes:            t.Notes,
		CancelReason:     t.CancelReason,
		CreatedBy:        t.CreatedBy,
		SentBy:           t.SentBy,
		ReceivedBy:       t.ReceivedBy,
		SentAt:           t.SentAt,
		ReceivedAt:       t.ReceivedAt,
		CancelledAt:      t.CancelledAt,
		Items:            make([]TransferItemModel, len(t.Items)),
	}
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	for i := range t.Items {
		m.Items[i] = TransferItemModelFromDomain(t.ID, i, &t.Items[i])
	}
	return m
}

// TransferItemModel is one line of a transfer
type TransferItemModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key"`
	TransferID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	Position         int              `gorm:"not null"`
	ItemKind         string           `gorm:"type:varchar(20);not null"`
	ItemID           uuid.UUID        `gorm:"type:uuid;not null"`
	Unit             string           `gorm:"type:varchar(20);not null"`
	QuantitySent     decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	QuantityReceived *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Discrepancy      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	// Associations
	Allocations []TransferAllocationModel `gorm:"foreignKey:TransferItemID;references:ID"`
}

// TableName returns the table name for GORM
func (TransferItemModel) TableName() string {
	return "transfer_items"
}

// ToDomain converts the persistence model to a domain transfer Item
func (m *TransferItemModel) ToDomain() transfer.Item {
	item := transfer.Item{
		ID:               m.ID,
		TransferID:       m.TransferID,
		Item:             stock.ItemRef{Kind: stock.ItemKind(m.ItemKind), ID: m.ItemID},
		Unit:             m.Unit,
		QuantitySent:     m.QuantitySent,
		QuantityReceived: m.QuantityReceived,
		Discrepancy:      m.Discrepancy,
	}
	for _, a := range m.Allocations {
		item.Allocations = append(item.Allocations, stock.LotAllocation{
			LotID:          a.LotID,
			Sequence:       a.Sequence,
			Quantity:       a.Quantity,
			ProductionDate: a.ProductionDate,
			ExpiryDate:     a.ExpiryDate,
			Cost: stock.LotCost{
				UnitCostUsd:  a.UnitCostUsd,
				UnitCostTjs:  a.UnitCostTjs,
				ExchangeRate: a.ExchangeRate,
			},
		})
	}
	return item
}

// TransferItemModelFromDomain creates a new persistence model from a domain transfer Item
func TransferItemModelFromDomain(transferID uuid.UUID, position int, item *transfer.Item) TransferItemModel {
	m := TransferItemModel{
		ID:               item.ID,
		TransferID:       transferID,
		Position:         position,
		ItemKind:         string(item.Item.Kind),
		ItemID:           item.Item.ID,
		Unit:             item.Unit,
		QuantitySent:     item.QuantitySent,
		QuantityReceived: item.QuantityReceived,
		Discrepancy:      item.Discrepancy,
		Allocations:      make([]TransferAllocationModel, len(item.Allocations)),
	}
	for i, a := range item.Allocations {
		m.Allocations[i] = TransferAllocationModel{
			ID:             uuid.New(),
			TransferItemID: item.ID,
			Position:       i,
			LotID:          a.LotID,
			Sequence:       a.Sequence,
			Quantity:       a.Quantity,
			ProductionDate: a.ProductionDate,
			ExpiryDate:     a.ExpiryDate,
			UnitCostUsd:    a.Cost.UnitCostUsd,
			UnitCostTjs:    a.Cost.UnitCostTjs,
			ExchangeRate:   a.Cost.ExchangeRate,
		}
	}
	return m
}

// TransferAllocationModel is a sender lot consumed by a product transfer item
type TransferAllocationModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TransferItemID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position       int       `gorm:"not null"`
	LotID          uuid.UUID `gorm:"type:uuid;not null"`
	Sequence       int64     `gorm:"not null"`
	Quantity       int64     `gorm:"not null"`
	ProductionDate time.Time `gorm:"not null"`
	ExpiryDate     *time.Time
	UnitCostUsd    decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	UnitCostTjs    decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	ExchangeRate   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
}

// TableName returns the table name for GORM
func (TransferAllocationModel) TableName() string {
	return "transfer_allocations"
}
