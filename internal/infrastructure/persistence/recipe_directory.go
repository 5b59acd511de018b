package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRecipeDirectory resolves recipe versions from the recipe_versions table.
// Reads join the transaction carried by ctx so lookups made while the ledger
// holds row locks stay on the same connection.
type GormRecipeDirectory struct {
	db *gorm.DB
}

// NewGormRecipeDirectory creates a new GormRecipeDirectory
func NewGormRecipeDirectory(db *gorm.DB) *GormRecipeDirectory {
	return &GormRecipeDirectory{db: db}
}

// GetRecipeVersion loads a version with its lines in position order
func (d *GormRecipeDirectory) GetRecipeVersion(ctx context.Context, versionID uuid.UUID) (*production.RecipeVersion, error) {
	var m models.RecipeVersionModel
	if err := conn(ctx, d.db).WithContext(ctx).
		Preload("Lines", orderByPosition).
		First(&m, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("recipe version", versionID)
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save stores a recipe version and its lines. Versions are immutable once saved.
func (d *GormRecipeDirectory) Save(ctx context.Context, v *production.RecipeVersion, at time.Time) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return conn(ctx, d.db).WithContext(ctx).Create(models.RecipeVersionModelFromDomain(v, at)).Error
}

var _ production.RecipeDirectory = (*GormRecipeDirectory)(nil)
