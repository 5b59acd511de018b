package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fifoOrder is the lot consumption order: oldest production date, then insertion sequence
const fifoOrder = "production_date ASC, sequence ASC"

// GormProductLotRepository implements ProductLotRepository using GORM
type GormProductLotRepository struct {
	db *gorm.DB
}

// NewGormProductLotRepository creates a new GormProductLotRepository
func NewGormProductLotRepository(db *gorm.DB) *GormProductLotRepository {
	return &GormProductLotRepository{db: db}
}

// Create inserts a lot
func (r *GormProductLotRepository) Create(ctx context.Context, lot *stock.ProductLot) error {
	return r.db.WithContext(ctx).Create(models.ProductLotModelFromDomain(lot)).Error
}

// FindAvailableFIFO returns the pair's non-empty lots in FIFO order
func (r *GormProductLotRepository) FindAvailableFIFO(ctx context.Context, branchID, recipeID uuid.UUID) ([]*stock.ProductLot, error) {
	var rows []models.ProductLotModel
	if err := r.db.WithContext(ctx).
		Where("branch_id = ? AND recipe_id = ? AND quantity > 0", branchID, recipeID).
		Order(fifoOrder).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	lots := make([]*stock.ProductLot, len(rows))
	for i := range rows {
		lots[i] = rows[i].ToDomain()
	}
	return lots, nil
}

// FindLatest returns the pair's most recently inserted lot or nil
func (r *GormProductLotRepository) FindLatest(ctx context.Context, branchID, recipeID uuid.UUID) (*stock.ProductLot, error) {
	var m models.ProductLotModel
	if err := r.db.WithContext(ctx).
		Where("branch_id = ? AND recipe_id = ?", branchID, recipeID).
		Order("sequence DESC").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByPair lists the pair's lots in FIFO order
func (r *GormProductLotRepository) FindByPair(ctx context.Context, branchID, recipeID uuid.UUID, includeEmpty bool) ([]stock.ProductLot, error) {
	query := r.db.WithContext(ctx).Where("branch_id = ? AND recipe_id = ?", branchID, recipeID)
	if !includeEmpty {
		query = query.Where("quantity > 0")
	}
	var rows []models.ProductLotModel
	if err := query.Order(fifoOrder).Find(&rows).Error; err != nil {
		return nil, err
	}
	return productLotsToDomain(rows), nil
}

// FindByBatch lists lots produced by a batch
func (r *GormProductLotRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]stock.ProductLot, error) {
	var rows []models.ProductLotModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order(fifoOrder).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return productLotsToDomain(rows), nil
}

// UpdateQuantity writes the lot's remaining quantity
func (r *GormProductLotRepository) UpdateQuantity(ctx context.Context, lot *stock.ProductLot) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductLotModel{}).
		Where("id = ?", lot.ID).
		Updates(map[string]interface{}{
			"quantity":   lot.Quantity,
			"updated_at": lot.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("product lot", lot.ID)
	}
	return nil
}

// SumAvailable sums the remaining quantity of the pair's lots
func (r *GormProductLotRepository) SumAvailable(ctx context.Context, branchID, recipeID uuid.UUID) (int64, error) {
	var sum int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductLotModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("branch_id = ? AND recipe_id = ?", branchID, recipeID).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}

func productLotsToDomain(rows []models.ProductLotModel) []stock.ProductLot {
	result := make([]stock.ProductLot, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

var _ stock.ProductLotRepository = (*GormProductLotRepository)(nil)
