package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormIngredientMovementRepository implements IngredientMovementRepository using GORM.
// Rows are only ever inserted.
type GormIngredientMovementRepository struct {
	db *gorm.DB
}

// NewGormIngredientMovementRepository creates a new GormIngredientMovementRepository
func NewGormIngredientMovementRepository(db *gorm.DB) *GormIngredientMovementRepository {
	return &GormIngredientMovementRepository{db: db}
}

// Create appends a movement
func (r *GormIngredientMovementRepository) Create(ctx context.Context, m *stock.IngredientMovement) error {
	return r.db.WithContext(ctx).Create(models.IngredientMovementModelFromDomain(m)).Error
}

// FindByID finds a movement by its ID
func (r *GormIngredientMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.IngredientMovement, error) {
	var m models.IngredientMovementModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("ingredient movement", id)
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByPair lists the pair's movements in posting order
func (r *GormIngredientMovementRepository) FindByPair(ctx context.Context, branchID, ingredientID uuid.UUID, filter shared.Filter) ([]stock.IngredientMovement, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.IngredientMovementModel{}).
		Where("branch_id = ? AND ingredient_id = ?", branchID, ingredientID)

	var total int64
	if err := applyWindow(base.Session(&gorm.Session{}), filter, "movement_date").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.IngredientMovementModel
	if err := applyPaging(base.Session(&gorm.Session{}), filter, "movement_date", "sequence").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return ingredientMovementsToDomain(rows), total, nil
}

// FindByReference lists movements stamped with the reference in posting order
func (r *GormIngredientMovementRepository) FindByReference(ctx context.Context, ref stock.Reference) ([]stock.IngredientMovement, error) {
	var rows []models.IngredientMovementModel
	if err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", string(ref.Type), ref.ID).
		Order("movement_date ASC").
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return ingredientMovementsToDomain(rows), nil
}

// SumByPair returns the signed sum of the pair's movements
func (r *GormIngredientMovementRepository) SumByPair(ctx context.Context, branchID, ingredientID uuid.UUID) (decimal.Decimal, error) {
	var rows []models.IngredientMovementModel
	if err := r.db.WithContext(ctx).
		Select("quantity").
		Where("branch_id = ? AND ingredient_id = ?", branchID, ingredientID).
		Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Quantity)
	}
	return sum, nil
}

// Latest returns the pair's last posted movement or nil
func (r *GormIngredientMovementRepository) Latest(ctx context.Context, branchID, ingredientID uuid.UUID) (*stock.IngredientMovement, error) {
	var m models.IngredientMovementModel
	if err := r.db.WithContext(ctx).
		Where("branch_id = ? AND ingredient_id = ?", branchID, ingredientID).
		Order("sequence DESC").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

func ingredientMovementsToDomain(rows []models.IngredientMovementModel) []stock.IngredientMovement {
	result := make([]stock.IngredientMovement, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

var _ stock.IngredientMovementRepository = (*GormIngredientMovementRepository)(nil)
