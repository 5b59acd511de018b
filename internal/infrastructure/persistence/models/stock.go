package models

import (
	"time"

	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientStockModel is the lockable balance row of one (branch, ingredient) pair
type IngredientStockModel struct {
	BaseModel
	BranchID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ingredient_stock_pair,priority:1"`
	IngredientID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ingredient_stock_pair,priority:2"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Unit           string          `gorm:"type:varchar(20);not null"`
	AverageCostUsd decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	MovementSeq    int64           `gorm:"not null;default:0"`
	LastMovementAt *time.Time
}

// TableName returns the table name for GORM
func (IngredientStockModel) TableName() string {
	return "ingredient_stocks"
}

// ToDomain converts the persistence model to a domain IngredientStock
func (m *IngredientStockModel) ToDomain() *stock.IngredientStock {
	return &stock.IngredientStock{
		ID:             m.ID,
		BranchID:       m.BranchID,
		IngredientID:   m.IngredientID,
		Quantity:       m.Quantity,
		Unit:           m.Unit,
		AverageCostUsd: m.AverageCostUsd,
		MovementSeq:    m.MovementSeq,
		LastMovementAt: m.LastMovementAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain IngredientStock
func (m *IngredientStockModel) FromDomain(s *stock.IngredientStock) {
	m.ID = s.ID
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	m.BranchID = s.BranchID
	m.IngredientID = s.IngredientID
	m.Quantity = s.Quantity
	m.Unit = s.Unit
	m.AverageCostUsd = s.AverageCostUsd
	m.MovementSeq = s.MovementSeq
	m.LastMovementAt = s.LastMovementAt
}

// IngredientStockModelFromDomain creates a new persistence model from a domain IngredientStock
func IngredientStockModelFromDomain(s *stock.IngredientStock) *IngredientStockModel {
	m := &IngredientStockModel{}
	m.FromDomain(s)
	return m
}

// IngredientMovementModel is an append-only ingredient movement row
type IngredientMovementModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	BranchID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_ingredient_movement_pair,priority:1"`
	IngredientID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_ingredient_movement_pair,priority:2"`
	StockID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Sequence      int64           `gorm:"not null;index:idx_ingredient_movement_pair,priority:3"`
	MovementType  string          `gorm:"type:varchar(20);not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Unit          string          `gorm:"type:varchar(20);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReferenceType string          `gorm:"type:varchar(30);index:idx_ingredient_movement_ref,priority:1"`
	ReferenceID   *uuid.UUID      `gorm:"type:uuid;index:idx_ingredient_movement_ref,priority:2"`
	ReversalOf    *uuid.UUID      `gorm:"type:uuid"`
	UnitCostUsd   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	Notes         string          `gorm:"type:text"`
	MovementDate  time.Time       `gorm:"not null;index"`
	CreatedBy     string          `gorm:"type:varchar(100);not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IngredientMovementModel) TableName() string {
	return "ingredient_movements"
}

// ToDomain converts the persistence model to a domain IngredientMovement
func (m *IngredientMovementModel) ToDomain() *stock.IngredientMovement {
	return &stock.IngredientMovement{
		ID:            m.ID,
		BranchID:      m.BranchID,
		IngredientID:  m.IngredientID,
		StockID:       m.StockID,
		Sequence:      m.Sequence,
		MovementType:  stock.MovementType(m.MovementType),
		Quantity:      m.Quantity,
		Unit:          m.Unit,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Reference:     toReference(m.ReferenceType, m.ReferenceID),
		ReversalOf:    m.ReversalOf,
		UnitCostUsd:   m.UnitCostUsd,
		Notes:         m.Notes,
		MovementDate:  m.MovementDate,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

// IngredientMovementModelFromDomain creates a new persistence model from a domain IngredientMovement
func IngredientMovementModelFromDomain(mv *stock.IngredientMovement) *IngredientMovementModel {
	return &IngredientMovementModel{
		ID:            mv.ID,
		BranchID:      mv.BranchID,
		IngredientID:  mv.IngredientID,
		StockID:       mv.StockID,
		Sequence:      mv.Sequence,
		MovementType:  string(mv.MovementType),
		Quantity:      mv.Quantity,
		Unit:          mv.Unit,
		BalanceBefore: mv.BalanceBefore,
		BalanceAfter:  mv.BalanceAfter,
		ReferenceType: string(mv.Reference.Type),
		ReferenceID:   mv.Reference.IDPtr(),
		ReversalOf:    mv.ReversalOf,
		UnitCostUsd:   mv.UnitCostUsd,
		Notes:         mv.Notes,
		MovementDate:  mv.MovementDate,
		CreatedBy:     mv.CreatedBy,
		CreatedAt:     mv.CreatedAt,
	}
}

// ProductBalanceModel is the lockable aggregate row of one (branch, recipe) pair
type ProductBalanceModel struct {
	BaseModel
	BranchID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_balance_pair,priority:1"`
	RecipeID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_balance_pair,priority:2"`
	Quantity       int64     `gorm:"not null;default:0"`
	LotSequence    int64     `gorm:"not null;default:0"`
	MovementSeq    int64     `gorm:"not null;default:0"`
	LastMovementAt *time.Time
}

// TableName returns the table name for GORM
func (ProductBalanceModel) TableName() string {
	return "product_balances"
}

// ToDomain converts the persistence model to a domain ProductBalance
func (m *ProductBalanceModel) ToDomain() *stock.ProductBalance {
	return &stock.ProductBalance{
		ID:             m.ID,
		BranchID:       m.BranchID,
		RecipeID:       m.RecipeID,
		Quantity:       m.Quantity,
		LotSequence:    m.LotSequence,
		MovementSeq:    m.MovementSeq,
		LastMovementAt: m.LastMovementAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ProductBalanceModelFromDomain creates a new persistence model from a domain ProductBalance
func ProductBalanceModelFromDomain(b *stock.ProductBalance) *ProductBalanceModel {
	return &ProductBalanceModel{
		BaseModel:      BaseModel{ID: b.ID, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt},
		BranchID:       b.BranchID,
		RecipeID:       b.RecipeID,
		Quantity:       b.Quantity,
		LotSequence:    b.LotSequence,
		MovementSeq:    b.MovementSeq,
		LastMovementAt: b.LastMovementAt,
	}
}

// ProductLotModel is one dated, costed lot of finished product
type ProductLotModel struct {
	BaseModel
	BranchID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_product_lot_fifo,priority:1"`
	RecipeID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_product_lot_fifo,priority:2"`
	BatchID         *uuid.UUID      `gorm:"type:uuid;index"`
	SourceLotID     *uuid.UUID      `gorm:"type:uuid"`
	Sequence        int64           `gorm:"not null;index:idx_product_lot_fifo,priority:4"`
	ProductionDate  time.Time       `gorm:"not null;index:idx_product_lot_fifo,priority:3"`
	ExpiryDate      *time.Time      `gorm:"index"`
	InitialQuantity int64           `gorm:"not null"`
	Quantity        int64           `gorm:"not null"`
	UnitCostUsd     decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	UnitCostTjs     decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	ExchangeRate    decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductLotModel) TableName() string {
	return "product_lots"
}

// ToDomain converts the persistence model to a domain ProductLot
func (m *ProductLotModel) ToDomain() *stock.ProductLot {
	return &stock.ProductLot{
		ID:              m.ID,
		BranchID:        m.BranchID,
		RecipeID:        m.RecipeID,
		BatchID:         m.BatchID,
		SourceLotID:     m.SourceLotID,
		Sequence:        m.Sequence,
		ProductionDate:  m.ProductionDate,
		ExpiryDate:      m.ExpiryDate,
		InitialQuantity: m.InitialQuantity,
		Quantity:        m.Quantity,
		UnitCostUsd:     m.UnitCostUsd,
		UnitCostTjs:     m.UnitCostTjs,
		ExchangeRate:    m.ExchangeRate,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// ProductLotModelFromDomain creates a new persistence model from a domain ProductLot
func ProductLotModelFromDomain(l *stock.ProductLot) *ProductLotModel {
	return &ProductLotModel{
		BaseModel:       BaseModel{ID: l.ID, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt},
		BranchID:        l.BranchID,
		RecipeID:        l.RecipeID,
		BatchID:         l.BatchID,
		SourceLotID:     l.SourceLotID,
		Sequence:        l.Sequence,
		ProductionDate:  l.ProductionDate,
		ExpiryDate:      l.ExpiryDate,
		InitialQuantity: l.InitialQuantity,
		Quantity:        l.Quantity,
		UnitCostUsd:     l.UnitCostUsd,
		UnitCostTjs:     l.UnitCostTjs,
		ExchangeRate:    l.ExchangeRate,
	}
}

// ProductMovementModel is an append-only finished-goods movement row
type ProductMovementModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	BranchID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_product_movement_pair,priority:1"`
	RecipeID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_product_movement_pair,priority:2"`
	Sequence      int64      `gorm:"not null;index:idx_product_movement_pair,priority:3"`
	OperationType string     `gorm:"type:varchar(20);not null"`
	Quantity      int64      `gorm:"not null"`
	BalanceBefore int64      `gorm:"not null"`
	BalanceAfter  int64      `gorm:"not null"`
	DocumentType  string     `gorm:"type:varchar(30);index:idx_product_movement_doc,priority:1"`
	DocumentID    *uuid.UUID `gorm:"type:uuid;index:idx_product_movement_doc,priority:2"`
	LotID         *uuid.UUID `gorm:"type:uuid"`
	Notes         string     `gorm:"type:text"`
	MovementDate  time.Time  `gorm:"not null;index"`
	CreatedBy     string     `gorm:"type:varchar(100);not null"`
	CreatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductMovementModel) TableName() string {
	return "product_movements"
}

// ToDomain converts the persistence model to a domain ProductMovement
func (m *ProductMovementModel) ToDomain() *stock.ProductMovement {
	return &stock.ProductMovement{
		ID:            m.ID,
		BranchID:      m.BranchID,
		RecipeID:      m.RecipeID,
		Sequence:      m.Sequence,
		OperationType: stock.OperationType(m.OperationType),
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Document:      toReference(m.DocumentType, m.DocumentID),
		LotID:         m.LotID,
		Notes:         m.Notes,
		MovementDate:  m.MovementDate,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

// ProductMovementModelFromDomain creates a new persistence model from a domain ProductMovement
func ProductMovementModelFromDomain(mv *stock.ProductMovement) *ProductMovementModel {
	return &ProductMovementModel{
		ID:            mv.ID,
		BranchID:      mv.BranchID,
		RecipeID:      mv.RecipeID,
		Sequence:      mv.Sequence,
		OperationType: string(mv.OperationType),
		Quantity:      mv.Quantity,
		BalanceBefore: mv.BalanceBefore,
		BalanceAfter:  mv.BalanceAfter,
		DocumentType:  string(mv.Document.Type),
		DocumentID:    mv.Document.IDPtr(),
		LotID:         mv.LotID,
		Notes:         mv.Notes,
		MovementDate:  mv.MovementDate,
		CreatedBy:     mv.CreatedBy,
		CreatedAt:     mv.CreatedAt,
	}
}

// StockDocumentModel is the persistence model for receipts and write-offs
type StockDocumentModel struct {
	AggregateModel
	Kind       string    `gorm:"type:varchar(20);not null;index:idx_stock_document_branch,priority:2"`
	BranchID   uuid.UUID `gorm:"type:uuid;not null;index:idx_stock_document_branch,priority:1"`
	Number     string    `gorm:"type:varchar(50)"`
	Reason     string    `gorm:"type:text"`
	Status     string    `gorm:"type:varchar(20);not null"`
	PostedBy   string    `gorm:"type:varchar(100);not null"`
	PostedAt   time.Time `gorm:"not null"`
	ReversedBy string    `gorm:"type:varchar(100)"`
	ReversedAt *time.Time
	// Associations
	Lines []StockDocumentLineModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (StockDocumentModel) TableName() string {
	return "stock_documents"
}

// ToDomain converts the persistence model to a domain StockDocument
func (m *StockDocumentModel) ToDomain() *stock.StockDocument {
	doc := &stock.StockDocument{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Kind:              stock.DocumentKind(m.Kind),
		BranchID:          m.BranchID,
		Number:            m.Number,
		Reason:            m.Reason,
		Status:            stock.DocumentStatus(m.Status),
		PostedBy:          m.PostedBy,
		PostedAt:          m.PostedAt,
		ReversedBy:        m.ReversedBy,
		ReversedAt:        m.ReversedAt,
		Lines:             make([]stock.StockDocumentLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		doc.Lines[i] = stock.StockDocumentLine{
			ID:           l.ID,
			DocumentID:   l.DocumentID,
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			UnitCostUsd:  l.UnitCostUsd,
			MovementID:   l.MovementID,
			ReversalID:   l.ReversalID,
		}
	}
	return doc
}

// StockDocumentModelFromDomain creates a new persistence model from a domain StockDocument
func StockDocumentModelFromDomain(d *stock.StockDocument) *StockDocumentModel {
	m := &StockDocumentModel{
		Kind:       string(d.Kind),
		BranchID:   d.BranchID,
		Number:     d.Number,
		Reason:     d.Reason,
		Status:     string(d.Status),
		PostedBy:   d.PostedBy,
		PostedAt:   d.PostedAt,
		ReversedBy: d.ReversedBy,
		ReversedAt: d.ReversedAt,
		Lines:      make([]StockDocumentLineModel, len(d.Lines)),
	}
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	for i, l := range d.Lines {
		m.Lines[i] = StockDocumentLineModel{
			ID:           l.ID,
			DocumentID:   d.ID,
			Position:     i,
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			UnitCostUsd:  l.UnitCostUsd,
			MovementID:   l.MovementID,
			ReversalID:   l.ReversalID,
		}
	}
	return m
}

// StockDocumentLineModel is one ingredient line of a stock document
type StockDocumentLineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position     int             `gorm:"not null"`
	IngredientID uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Unit         string          `gorm:"type:varchar(20);not null"`
	UnitCostUsd  decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	MovementID   *uuid.UUID      `gorm:"type:uuid"`
	ReversalID   *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (StockDocumentLineModel) TableName() string {
	return "stock_document_lines"
}

func toReference(refType string, id *uuid.UUID) stock.Reference {
	ref := stock.Reference{Type: stock.ReferenceType(refType)}
	if id != nil {
		ref.ID = *id
	}
	return ref
}
