package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductBalanceRepository implements ProductBalanceRepository using GORM.
// The balance row is the lock every lot mutation of its pair serializes on.
type GormProductBalanceRepository struct {
	db *gorm.DB
}

// NewGormProductBalanceRepository creates a new GormProductBalanceRepository
func NewGormProductBalanceRepository(db *gorm.DB) *GormProductBalanceRepository {
	return &GormProductBalanceRepository{db: db}
}

// GetForUpdate inserts the pair's row if missing, then selects it FOR UPDATE
func (r *GormProductBalanceRepository) GetForUpdate(ctx context.Context, branchID, recipeID uuid.UUID, at time.Time) (*stock.ProductBalance, error) {
	fresh, err := stock.NewProductBalance(branchID, recipeID, at)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch_id"}, {Name: "recipe_id"}},
			DoNothing: true,
		}).
		Create(models.ProductBalanceModelFromDomain(fresh)).Error; err != nil {
		return nil, err
	}

	var m models.ProductBalanceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND recipe_id = ?", branchID, recipeID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// Find returns the pair's row or nil
func (r *GormProductBalanceRepository) Find(ctx context.Context, branchID, recipeID uuid.UUID) (*stock.ProductBalance, error) {
	var m models.ProductBalanceModel
	if err := r.db.WithContext(ctx).
		Where("branch_id = ? AND recipe_id = ?", branchID, recipeID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindPositiveByBranch returns the branch's balances with stock on hand, ordered by recipe
func (r *GormProductBalanceRepository) FindPositiveByBranch(ctx context.Context, branchID uuid.UUID) ([]stock.ProductBalance, error) {
	var rows []models.ProductBalanceModel
	if err := r.db.WithContext(ctx).
		Where("branch_id = ? AND quantity > 0", branchID).
		Order("recipe_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]stock.ProductBalance, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Update writes the mutable columns of a locked row
func (r *GormProductBalanceRepository) Update(ctx context.Context, b *stock.ProductBalance) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductBalanceModel{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"quantity":         b.Quantity,
			"lot_sequence":     b.LotSequence,
			"movement_seq":     b.MovementSeq,
			"last_movement_at": b.LastMovementAt,
			"updated_at":       b.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("product balance", b.ID)
	}
	return nil
}

var _ stock.ProductBalanceRepository = (*GormProductBalanceRepository)(nil)
