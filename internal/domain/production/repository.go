package production

import (
	"context"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchRepository persists production batches with their consumption lines
type BatchRepository interface {
	Create(ctx context.Context, b *ProductionBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*ProductionBatch, error)

	// FindByIDForUpdate loads the batch and locks its row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ProductionBatch, error)

	FindByBranch(ctx context.Context, branchID uuid.UUID, status BatchStatus, filter shared.Filter) ([]ProductionBatch, int64, error)

	// Update writes status fields, version and consumption quantities
	Update(ctx context.Context, b *ProductionBatch) error
}
