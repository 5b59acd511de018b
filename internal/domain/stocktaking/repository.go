package stocktaking

import (
	"context"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository persists inventories with their items
type Repository interface {
	Create(ctx context.Context, inv *Inventory) error
	FindByID(ctx context.Context, id uuid.UUID) (*Inventory, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Inventory, error)
	FindByBranch(ctx context.Context, branchID uuid.UUID, status Status, filter shared.Filter) ([]Inventory, int64, error)

	// Update writes status fields and item counts
	Update(ctx context.Context, inv *Inventory) error
}
