package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockDocumentRepository implements StockDocumentRepository using GORM
type GormStockDocumentRepository struct {
	db *gorm.DB
}

// NewGormStockDocumentRepository creates a new GormStockDocumentRepository
func NewGormStockDocumentRepository(db *gorm.DB) *GormStockDocumentRepository {
	return &GormStockDocumentRepository{db: db}
}

// Create inserts the document and its lines
func (r *GormStockDocumentRepository) Create(ctx context.Context, doc *stock.StockDocument) error {
	return r.db.WithContext(ctx).Create(models.StockDocumentModelFromDomain(doc)).Error
}

// FindByID loads the document with its lines
func (r *GormStockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockDocument, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads the document with its lines and locks the document row
func (r *GormStockDocumentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*stock.StockDocument, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormStockDocumentRepository) find(query *gorm.DB, id uuid.UUID) (*stock.StockDocument, error) {
	var m models.StockDocumentModel
	if err := query.
		Preload("Lines", orderByPosition).
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("stock document", id)
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByBranch lists a branch's documents, newest first unless the filter asks otherwise
func (r *GormStockDocumentRepository) FindByBranch(ctx context.Context, branchID uuid.UUID, kind stock.DocumentKind, filter shared.Filter) ([]stock.StockDocument, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.StockDocumentModel{}).Where("branch_id = ?", branchID)
	if kind != "" {
		base = base.Where("kind = ?", string(kind))
	}

	var total int64
	if err := applyWindow(base.Session(&gorm.Session{}), filter, "posted_at").Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}
	var rows []models.StockDocumentModel
	if err := applyPaging(base.Session(&gorm.Session{}), filter, "posted_at", "posted_at").
		Preload("Lines", orderByPosition).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	result := make([]stock.StockDocument, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, total, nil
}

// Update writes status, version and the line movement links
func (r *GormStockDocumentRepository) Update(ctx context.Context, doc *stock.StockDocument) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.StockDocumentModel{}).
		Where("id = ?", doc.ID).
		Updates(map[string]interface{}{
			"status":      string(doc.Status),
			"reversed_by": doc.ReversedBy,
			"reversed_at": doc.ReversedAt,
			"version":     doc.Version,
			"updated_at":  doc.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("stock document", doc.ID)
	}
	for _, line := range doc.Lines {
		if err := db.Model(&models.StockDocumentLineModel{}).
			Where("id = ?", line.ID).
			Updates(map[string]interface{}{
				"movement_id": line.MovementID,
				"reversal_id": line.ReversalID,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

var _ stock.StockDocumentRepository = (*GormStockDocumentRepository)(nil)
