package models

import (
	"time"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipeVersionModel is a read-only snapshot of a recipe formula.
// Recipes are maintained by the catalog; this service only reads pinned versions.
type RecipeVersionModel struct {
	BaseModel
	RecipeID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_recipe_version,priority:1"`
	Version       int             `gorm:"not null;uniqueIndex:idx_recipe_version,priority:2"`
	OutputVolume  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutputUnit    string          `gorm:"type:varchar(20);not null"`
	ShelfLifeDays int             `gorm:"not null;default:0"`
	// Associations
	Lines []RecipeLineModel `gorm:"foreignKey:RecipeVersionID;references:ID"`
}

// TableName returns the table name for GORM
func (RecipeVersionModel) TableName() string {
	return "recipe_versions"
}

// ToDomain converts the persistence model to a domain RecipeVersion
func (m *RecipeVersionModel) ToDomain() *production.RecipeVersion {
	v := &production.RecipeVersion{
		ID:            m.ID,
		RecipeID:      m.RecipeID,
		Version:       m.Version,
		OutputVolume:  m.OutputVolume,
		OutputUnit:    m.OutputUnit,
		ShelfLifeDays: m.ShelfLifeDays,
		Lines:         make([]production.RecipeLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		v.Lines[i] = production.RecipeLine{
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			Kind:         production.LineKind(l.Kind),
			Position:     l.Position,
		}
	}
	return v
}

// RecipeVersionModelFromDomain creates a new persistence model from a domain RecipeVersion
func RecipeVersionModelFromDomain(v *production.RecipeVersion, at time.Time) *RecipeVersionModel {
	m := &RecipeVersionModel{
		BaseModel:     BaseModel{ID: v.ID, CreatedAt: at, UpdatedAt: at},
		RecipeID:      v.RecipeID,
		Version:       v.Version,
		OutputVolume:  v.OutputVolume,
		OutputUnit:    v.OutputUnit,
		ShelfLifeDays: v.ShelfLifeDays,
		Lines:         make([]RecipeLineModel, len(v.Lines)),
	}
	for i, l := range v.Lines {
		m.Lines[i] = RecipeLineModel{
			ID:              uuid.New(),
			RecipeVersionID: v.ID,
			IngredientID:    l.IngredientID,
			Quantity:        l.Quantity,
			Unit:            l.Unit,
			Kind:            string(l.Kind),
			Position:        l.Position,
		}
	}
	return m
}

// RecipeLineModel is one ingredient or packaging line of a recipe version
type RecipeLineModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	RecipeVersionID uuid.UUID       `gorm:"type:uuid;not null;index"`
	IngredientID    uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Unit            string          `gorm:"type:varchar(20);not null"`
	Kind            string          `gorm:"type:varchar(20);not null"`
	Position        int             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RecipeLineModel) TableName() string {
	return "recipe_lines"
}

// ProductionBatchModel is the persistence model for the ProductionBatch aggregate
type ProductionBatchModel struct {
	AggregateModel
	RecipeID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	RecipeVersionID uuid.UUID       `gorm:"type:uuid;not null"`
	BranchID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_batch_branch_status,priority:1"`
	PlannedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ActualQuantity  *int64
	PlannedDate     time.Time  `gorm:"not null"`
	Status          string     `gorm:"type:varchar(20);not null;index:idx_batch_branch_status,priority:2"`
	Notes           string     `gorm:"type:text"`
	CancelReason    string     `gorm:"type:text"`
	LotID           *uuid.UUID `gorm:"type:uuid"`
	CreatedBy       string     `gorm:"type:varchar(100);not null"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	// Associations
	Consumptions []BatchConsumptionModel `gorm:"foreignKey:BatchID;references:ID"`
}

// TableName returns the table name for GORM
func (ProductionBatchModel) TableName() string {
	return "production_batches"
}

// ToDomain converts the persistence model to a domain ProductionBatch
func (m *ProductionBatchModel) ToDomain() *production.ProductionBatch {
	b := &production.ProductionBatch{
		BaseAggregateRoot: m.ToAggregateRoot(),
		RecipeID:          m.RecipeID,
		RecipeVersionID:   m.RecipeVersionID,
		BranchID:          m.BranchID,
		PlannedQuantity:   m.PlannedQuantity,
		ActualQuantity:    m.ActualQuantity,
		PlannedDate:       m.PlannedDate,
		Status:            production.BatchStatus(m.Status),
		Notes:             m.Notes,
		CancelReason:      m.CancelReason,
		LotID:             m.LotID,
		CreatedBy:         m.CreatedBy,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		Consumptions:      make([]production.Consumption, len(m.Consumptions)),
	}
	for i, c := range m.Consumptions {
		b.Consumptions[i] = production.Consumption{
			ID:              c.ID,
			BatchID:         c.BatchID,
			IngredientID:    c.IngredientID,
			Kind:            production.LineKind(c.Kind),
			Unit:            c.Unit,
			PlannedQuantity: c.PlannedQuantity,
			ActualQuantity:  c.ActualQuantity,
			MovementID:      c.MovementID,
		}
	}
	return b
}

// ProductionBatchModelFromDomain creates a new persistence model from a domain ProductionBatch
func ProductionBatchModelFromDomain(b *production.ProductionBatch) *ProductionBatchModel {
	m := &ProductionBatchModel{
		RecipeID:        b.RecipeID,
		RecipeVersionID: b.RecipeVersionID,
		BranchID:        b.BranchID,
		PlannedQuantity: b.PlannedQuantity,
		ActualQuantity:  b.ActualQuantity,
		PlannedDate:     b.PlannedDate,
		Status:          string(b.Status),
		Notes:           b.Notes,
		CancelReason:    b.CancelReason,
		LotID:           b.LotID,
		CreatedBy:       b.CreatedBy,
		StartedAt:       b.StartedAt,
		CompletedAt:     b.CompletedAt,
		CancelledAt:     b.CancelledAt,
		Consumptions:    make([]BatchConsumptionModel, len(b.Consumptions)),
	}
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	for i, c := range b.Consumptions {
		m.Consumptions[i] = BatchConsumptionModel{
			ID:              c.ID,
			BatchID:         b.ID,
			Position:        i,
			IngredientID:    c.IngredientID,
			Kind:            string(c.Kind),
			Unit:            c.Unit,
			PlannedQuantity: c.PlannedQuantity,
			ActualQuantity:  c.ActualQuantity,
			MovementID:      c.MovementID,
		}
	}
	return m
}

// BatchConsumptionModel is the planned and actual use of one recipe line
type BatchConsumptionModel struct {
	ID              uuid.UUID        `gorm:"type:uuid;primary_key"`
	BatchID         uuid.UUID        `gorm:"type:uuid;not null;index"`
	Position        int              `gorm:"not null"`
	IngredientID    uuid.UUID        `gorm:"type:uuid;not null"`
	Kind            string           `gorm:"type:varchar(20);not null"`
	Unit            string           `gorm:"type:varchar(20);not null"`
	PlannedQuantity decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	ActualQuantity  *decimal.Decimal `gorm:"type:decimal(18,4)"`
	MovementID      *uuid.UUID       `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (BatchConsumptionModel) TableName() string {
	return "batch_consumptions"
}
