package stock

import (
	"context"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientStockRepository persists ingredient balance rows.
// Only the ledger mutates these rows, always inside a transaction.
type IngredientStockRepository interface {
	// GetForUpdate returns the row for (branch, ingredient) locked FOR UPDATE,
	// creating it first (ON CONFLICT DO NOTHING) in the given unit when absent
	GetForUpdate(ctx context.Context, branchID, ingredientID uuid.UUID, unit string, at time.Time) (*IngredientStock, error)

	// Find returns the row without locking, or nil when the pair was never touched
	Find(ctx context.Context, branchID, ingredientID uuid.UUID) (*IngredientStock, error)

	// FindByBranch returns every stock row of a branch ordered by ingredient
	FindByBranch(ctx context.Context, branchID uuid.UUID) ([]IngredientStock, error)

	// Update writes quantity, cost and timestamps
	Update(ctx context.Context, s *IngredientStock) error
}

// IngredientMovementRepository persists the append-only ingredient history
type IngredientMovementRepository interface {
	Create(ctx context.Context, m *IngredientMovement) error
	FindByID(ctx context.Context, id uuid.UUID) (*IngredientMovement, error)

	// FindByPair lists movements of (branch, ingredient) in posting order
	FindByPair(ctx context.Context, branchID, ingredientID uuid.UUID, filter shared.Filter) ([]IngredientMovement, int64, error)

	// FindByReference lists movements stamped with the reference
	FindByReference(ctx context.Context, ref Reference) ([]IngredientMovement, error)

	// SumByPair returns the signed sum of all movements for the pair
	SumByPair(ctx context.Context, branchID, ingredientID uuid.UUID) (decimal.Decimal, error)

	// Latest returns the most recently posted movement for the pair, or nil
	Latest(ctx context.Context, branchID, ingredientID uuid.UUID) (*IngredientMovement, error)
}

// ProductBalanceRepository persists the per-(branch, recipe) aggregate rows
type ProductBalanceRepository interface {
	// GetForUpdate returns the balance row locked FOR UPDATE, creating it when absent
	GetForUpdate(ctx context.Context, branchID, recipeID uuid.UUID, at time.Time) (*ProductBalance, error)

	// Find returns the row without locking, or nil when the pair was never touched
	Find(ctx context.Context, branchID, recipeID uuid.UUID) (*ProductBalance, error)

	// FindPositiveByBranch returns balances with quantity > 0 ordered by recipe
	FindPositiveByBranch(ctx context.Context, branchID uuid.UUID) ([]ProductBalance, error)

	// Update writes quantity, lot sequence and timestamps
	Update(ctx context.Context, b *ProductBalance) error
}

// ProductLotRepository persists finished-goods lots
type ProductLotRepository interface {
	Create(ctx context.Context, lot *ProductLot) error

	// FindAvailableFIFO returns lots with quantity > 0 ordered by
	// production date then sequence. Callers must hold the balance lock.
	FindAvailableFIFO(ctx context.Context, branchID, recipeID uuid.UUID) ([]*ProductLot, error)

	// FindLatest returns the lot with the highest sequence, or nil
	FindLatest(ctx context.Context, branchID, recipeID uuid.UUID) (*ProductLot, error)

	// FindByPair lists every lot of the pair in FIFO order, including empty ones when includeEmpty is set
	FindByPair(ctx context.Context, branchID, recipeID uuid.UUID, includeEmpty bool) ([]ProductLot, error)

	// FindByBatch lists lots produced by a batch
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]ProductLot, error)

	// UpdateQuantity writes the lot's remaining quantity
	UpdateQuantity(ctx context.Context, lot *ProductLot) error

	// SumAvailable sums remaining quantity over the pair's lots
	SumAvailable(ctx context.Context, branchID, recipeID uuid.UUID) (int64, error)
}

// ProductMovementRepository persists the append-only product history
type ProductMovementRepository interface {
	Create(ctx context.Context, m *ProductMovement) error
	FindByPair(ctx context.Context, branchID, recipeID uuid.UUID, filter shared.Filter) ([]ProductMovement, int64, error)
	FindByDocument(ctx context.Context, doc Reference) ([]ProductMovement, error)
	Latest(ctx context.Context, branchID, recipeID uuid.UUID) (*ProductMovement, error)
}

// StockDocumentRepository persists receipts and write-offs
type StockDocumentRepository interface {
	// Create inserts the document with its lines
	Create(ctx context.Context, doc *StockDocument) error

	// FindByID loads the document with lines
	FindByID(ctx context.Context, id uuid.UUID) (*StockDocument, error)

	// FindByIDForUpdate loads and locks the document row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*StockDocument, error)

	// FindByBranch lists documents of a branch, newest first
	FindByBranch(ctx context.Context, branchID uuid.UUID, kind DocumentKind, filter shared.Filter) ([]StockDocument, int64, error)

	// Update writes status, version and line movement links
	Update(ctx context.Context, doc *StockDocument) error
}
