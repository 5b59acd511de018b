package models

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel holds the identity columns every ledger table carries
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func baseModelOf(e shared.BaseEntity) BaseModel {
	return BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// AggregateModel adds the version column of documents, batches, transfers
// and inventories, rewritten on every update.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.BaseModel = baseModelOf(a.BaseEntity)
	m.Version = a.Version
}

// ToAggregateRoot rebuilds the embedded root; pending events are not stored here
func (m *AggregateModel) ToAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{BaseEntity: m.BaseModel.ToDomain(), Version: m.Version}
}

// All lists the models in dependency order, for AutoMigrate in tests
func All() []any {
	return []any{
		&IngredientStockModel{}, &IngredientMovementModel{},
		&ProductBalanceModel{}, &ProductLotModel{}, &ProductMovementModel{},
		&StockDocumentModel{}, &StockDocumentLineModel{},
		&RecipeVersionModel{}, &RecipeLineModel{},
		&ProductionBatchModel{}, &BatchConsumptionModel{},
		&TransferModel{}, &TransferItemModel{}, &TransferAllocationModel{},
		&InventoryModel{}, &InventoryItemModel{},
		&OutboxEntryModel{},
	}
}
