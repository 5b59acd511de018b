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

// GormProductMovementRepository implements ProductMovementRepository using GORM.
// Rows are only ever inserted.
type GormProductMovementRepository struct {
	db *gorm.DB
}

// NewGormProductMovementRepository creates a new GormProductMovementRepository
func NewGormProductMovementRepository(db *gorm.DB) *GormProductMovementRepository {
	return &GormProductMovementRepository{db: db}
}

// Create appends a movement
func (r *GormProductMovementRepository) Create(ctx context.Context, m *stock.ProductMovement) error {
	return r.db.WithContext(ctx).Create(models.ProductMovementModelFromDomain(m)).Error
}

// FindByPair lists the pair's movements in posting order
func (r *GormProductMovementRepository) FindByPair(ctx context.Context, branchID, recipeID uuid.UUID, filter shared.Filter) ([]stock.ProductMovement, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.ProductMovementModel{}).
		Where("branch_id = ? AND recipe_id = ?", branchID, recipeID)

	var total int64
	if err := applyWindow(base.Session(&gorm.Session{}), filter, "movement_date").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ProductMovementModel
	if err := applyPaging(base.Session(&gorm.Session{}), filter, "movement_date", "sequence").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return productMovementsToDomain(rows), total, nil
}

// FindByDocument lists movements stamped with the document reference
func (r *GormProductMovementRepository) FindByDocument(ctx context.Context, doc stock.Reference) ([]stock.ProductMovement, error) {
	var rows []models.ProductMovementModel
	if err := r.db.WithContext(ctx).
		Where("document_type = ? AND document_id = ?", string(doc.Type), doc.ID).
		Order("movement_date ASC").
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return productMovementsToDomain(rows), nil
}

// Latest returns the pair's last posted movement or nil
func (r *GormProductMovementRepository) Latest(ctx context.Context, branchID, recipeID uuid.UUID) (*stock.ProductMovement, error) {
	var m models.ProductMovementModel
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

func productMovementsToDomain(rows []models.ProductMovementModel) []stock.ProductMovement {
	result := make([]stock.ProductMovement, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

var _ stock.ProductMovementRepository = (*GormProductMovementRepository)(nil)
