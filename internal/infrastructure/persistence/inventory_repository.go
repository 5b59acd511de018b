package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInventoryRepository implements stocktaking.Repository using GORM
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository creates a new GormInventoryRepository
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// Create inserts the inventory with its snapshot items
func (r *GormInventoryRepository) Create(ctx context.Context, inv *stocktaking.Inventory) error {
	return r.db.WithContext(ctx).Create(models.InventoryModelFromDomain(inv)).Error
}

// FindByID loads an inventory with its items
func (r *GormInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*stocktaking.Inventory, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads an inventory and locks its row
func (r *GormInventoryRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*stocktaking.Inventory, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormInventoryRepository) find(query *gorm.DB, id uuid.UUID) (*stocktaking.Inventory, error) {
	var m models.InventoryModel
	if err := query.
		Preload("Items", orderByPosition).
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("inventory", id)
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByBranch lists a branch's inventories, optionally by status
func (r *GormInventoryRepository) FindByBranch(ctx context.Context, branchID uuid.UUID, status stocktaking.Status, filter shared.Filter) ([]stocktaking.Inventory, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.InventoryModel{}).Where("branch_id = ?", branchID)
	if status != "" {
		base = base.Where("status = ?", string(status))
	}

	var total int64
	if err := applyWindow(base.Session(&gorm.Session{}), filter, "inventory_date").Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.InventoryModel
	if err := applyPaging(base.Session(&gorm.Session{}), filter, "inventory_date", "inventory_date", "created_at").
		Preload("Items", orderByPosition).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	result := make([]stocktaking.Inventory, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, total, nil
}

// Update writes lifecycle fields and item counts
func (r *GormInventoryRepository) Update(ctx context.Context, inv *stocktaking.Inventory) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.InventoryModel{}).
		Where("id = ?", inv.ID).
		Updates(map[string]interface{}{
			"status":        string(inv.Status),
			"cancel_reason": inv.CancelReason,
			"completed_by":  inv.CompletedBy,
			"started_at":    inv.StartedAt,
			"completed_at":  inv.CompletedAt,
			"cancelled_at":  inv.CancelledAt,
			"version":       inv.Version,
			"updated_at":    inv.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("inventory", inv.ID)
	}
	for _, item := range inv.Items {
		if err := db.Model(&models.InventoryItemModel{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"actual_quantity": item.ActualQuantity,
				"discrepancy":     item.Discrepancy,
				"adjustment_id":   item.AdjustmentID,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ stocktaking.Repository = (*GormInventoryRepository)(nil)
