package transfer

import (
	"context"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository persists transfers with their items and lot allocations
type Repository interface {
	Create(ctx context.Context, t *Transfer) error
	FindByID(ctx context.Context, id uuid.UUID) (*Transfer, error)

	// FindByIDForUpdate loads the transfer and locks its row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Transfer, error)

	// FindByBranch lists transfers where the branch is sender or receiver
	FindByBranch(ctx context.Context, branchID uuid.UUID, status Status, filter shared.Filter) ([]Transfer, int64, error)

	// Update writes status fields, item receipts and allocations
	Update(ctx context.Context, t *Transfer) error
}
