package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// Create inserts the batch and its consumption lines
func (r *GormBatchRepository) Create(ctx context.Context, b *production.ProductionBatch) error {
	return r.db.WithContext(ctx).Create(models.ProductionBatchModelFromDomain(b)).Error
}

// FindByID loads a batch with its consumption lines
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*production.ProductionBatch, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads a batch and locks its row
func (r *GormBatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*production.ProductionBatch, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormBatchRepository) find(query *gorm.DB, id uuid.UUID) (*production.ProductionBatch, error) {
	var m models.ProductionBatchModel
	if err := query.
		Preload("Consumptions", orderByPosition).
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("production batch", id)
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByBranch lists a branch's batches, optionally by status
func (r *GormBatchRepository) FindByBranch(ctx context.Context, branchID uuid.UUID, status production.BatchStatus, filter shared.Filter) ([]production.ProductionBatch, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.ProductionBatchModel{}).Where("branch_id = ?", branchID)
	if status != "" {
		base = base.Where("status = ?", string(status))
	}

	var total int64
	if err := applyWindow(base.Session(&gorm.Session{}), filter, "planned_date").Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ProductionBatchModel
	if err := applyPaging(base.Session(&gorm.Session{}), filter, "planned_date", "planned_date", "created_at").
		Preload("Consumptions", orderByPosition).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	result := make([]production.ProductionBatch, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, total, nil
}

// Update writes lifecycle fields and every consumption line
func (r *GormBatchRepository) Update(ctx context.Context, b *production.ProductionBatch) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.ProductionBatchModel{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"status":          string(b.Status),
			"actual_quantity": b.ActualQuantity,
			"cancel_reason":   b.CancelReason,
			"lot_id":          b.LotID,
			"started_at":      b.StartedAt,
			"completed_at":    b.CompletedAt,
			"cancelled_at":    b.CancelledAt,
			"version":         b.Version,
			"updated_at":      b.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("production batch", b.ID)
	}
	for _, c := range b.Consumptions {
		if err := db.Model(&models.BatchConsumptionModel{}).
			Where("id = ?", c.ID).
			Updates(map[string]interface{}{
				"planned_quantity": c.PlannedQuantity,
				"actual_quantity":  c.ActualQuantity,
				"movement_id":      c.MovementID,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ production.BatchRepository = (*GormBatchRepository)(nil)
