package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTransferRepository implements transfer.Repository using GORM
type GormTransferRepository struct {
	db *gorm.DB
}

// NewGormTransferRepository creates a new GormTransferRepository
func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// Create inserts the transfer with its items
func (r *GormTransferRepository) Create(ctx context.Context, t *transfer.Transfer) error {
	return r.db.WithContext(ctx).Create(models.TransferModelFromDomain(t)).Error
}

// FindByID loads a transfer with items and allocations
func (r *GormTransferRepository) FindByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads a transfer and locks its row
func (r *GormTransferRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormTransferRepository) find(query *gorm.DB, id uuid.UUID) (*transfer.Transfer, error) {
	var m models.TransferModel
	if err := query.
		Preload("Items", orderByPosition).
		Preload("Items.Allocations", orderByPosition).
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("transfer", id)
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByBranch lists transfers the branch sent or receives
func (r *GormTransferRepository) FindByBranch(ctx context.Context, branchID uuid.UUID, status transfer.Status, filter shared.Filter) ([]transfer.Transfer, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.TransferModel{}).
		Where("sender_branch_id = ? OR receiver_branch_id = ?", branchID, branchID)
	if status != "" {
		base = base.Where("status = ?", string(status))
	}

	var total int64
	if err := applyWindow(base.Session(&gorm.Session{}), filter, "created_at").Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.TransferModel
	if err := applyPaging(base.Session(&gorm.Session{}), filter, "created_at", "created_at").
		Preload("Items", orderByPosition).
		Preload("Items.Allocations", orderByPosition).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	result := make([]transfer.Transfer, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, total, nil
}

// Update writes lifecycle fields, item receipts and replaces each item's allocations
func (r *GormTransferRepository) Update(ctx context.Context, t *transfer.Transfer) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.TransferModel{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"status":        string(t.Status),
			"cancel_reason": t.CancelReason,
			"sent_by":       t.SentBy,
			"received_by":   t.ReceivedBy,
			"sent_at":       t.SentAt,
			"received_at":   t.ReceivedAt,
			"cancelled_at":  t.CancelledAt,
			"version":       t.Version,
			"updated_at":    t.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("transfer", t.ID)
	}

	for i := range t.Items {
		item := models.TransferItemModelFromDomain(t.ID, i, &t.Items[i])
		if err := db.Model(&models.TransferItemModel{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"quantity_received": item.QuantityReceived,
				"discrepancy":       item.Discrepancy,
			}).Error; err != nil {
			return err
		}
		if err := db.Where("transfer_item_id = ?", item.ID).Delete(&models.TransferAllocationModel{}).Error; err != nil {
			return err
		}
		if len(item.Allocations) > 0 {
			if err := db.Create(&item.Allocations).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

var _ transfer.Repository = (*GormTransferRepository)(nil)
