// Package txn defines the unit-of-work boundary the ledger services run in.
package txn

import (
	"context"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/erp/stockcore/internal/domain/transfer"
)

// Scope provides transactional access to the ledger repositories.
//
// Execute runs fn inside a database transaction; the ctx handed to fn carries
// that transaction, and a nested Execute with that ctx joins it instead of
// opening a new one. If any fn in the chain returns an error the whole
// outermost transaction is rolled back. Only the outermost Execute retries
// retryable storage failures (serialization, deadlock, lock timeout).
//
// Query runs fn without opening a transaction, joining one if ctx carries it.
type Scope interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Query(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Repositories gives access to every repository bound to the current transaction.
// All repositories returned share the same underlying database transaction.
type Repositories interface {
	IngredientStocks() stock.IngredientStockRepository
	IngredientMovements() stock.IngredientMovementRepository
	ProductBalances() stock.ProductBalanceRepository
	ProductLots() stock.ProductLotRepository
	ProductMovements() stock.ProductMovementRepository
	StockDocuments() stock.StockDocumentRepository
	Batches() production.BatchRepository
	Transfers() transfer.Repository
	Inventories() stocktaking.Repository
	// Events writes domain events to the outbox inside the transaction
	Events() shared.EventRecorder
}
