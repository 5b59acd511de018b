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

// GormIngredientStockRepository implements IngredientStockRepository using GORM
type GormIngredientStockRepository struct {
	db *gorm.DB
}

// NewGormIngredientStockRepository creates a new GormIngredientStockRepository
func NewGormIngredientStockRepository(db *gorm.DB) *GormIngredientStockRepository {
	return &GormIngredientStockRepository{db: db}
}

// GetForUpdate inserts the pair's row if missing, then selects it FOR UPDATE.
// Two first-touch writers race on the unique index; the loser's insert is a no-op
// and both end up serialized on the same locked row.
func (r *GormIngredientStockRepository) GetForUpdate(ctx context.Context, branchID, ingredientID uuid.UUID, unit string, at time.Time) (*stock.IngredientStock, error) {
	fresh, err := stock.NewIngredientStock(branchID, ingredientID, unit, at)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch_id"}, {Name: "ingredient_id"}},
			DoNothing: true,
		}).
		Create(models.IngredientStockModelFromDomain(fresh)).Error; err != nil {
		return nil, err
	}

	var m models.IngredientStockModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND ingredient_id = ?", branchID, ingredientID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// Find returns the pair's row or nil
func (r *GormIngredientStockRepository) Find(ctx context.Context, branchID, ingredientID uuid.UUID) (*stock.IngredientStock, error) {
	var m models.IngredientStockModel
	if err := r.db.WithContext(ctx).
		Where("branch_id = ? AND ingredient_id = ?", branchID, ingredientID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByBranch returns every stock row of the branch ordered by ingredient
func (r *GormIngredientStockRepository) FindByBranch(ctx context.Context, branchID uuid.UUID) ([]stock.IngredientStock, error) {
	var rows []models.IngredientStockModel
	if err := r.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("ingredient_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]stock.IngredientStock, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Update writes the mutable columns of a locked row
func (r *GormIngredientStockRepository) Update(ctx context.Context, s *stock.IngredientStock) error {
	result := r.db.WithContext(ctx).
		Model(&models.IngredientStockModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"quantity":         s.Quantity,
			"unit":             s.Unit,
			"average_cost_usd": s.AverageCostUsd,
			"movement_seq":     s.MovementSeq,
			"last_movement_at": s.LastMovementAt,
			"updated_at":       s.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("ingredient stock", s.ID)
	}
	return nil
}

var _ stock.IngredientStockRepository = (*GormIngredientStockRepository)(nil)
