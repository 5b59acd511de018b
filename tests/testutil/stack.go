package testutil

import (
	"testing"

	"github.com/erp/stockcore/internal/application/ledger"
	productionapp "github.com/erp/stockcore/internal/application/production"
	stocktakingapp "github.com/erp/stockcore/internal/application/stocktaking"
	transferapp "github.com/erp/stockcore/internal/application/transfer"
	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/infrastructure/cache"
	"github.com/erp/stockcore/internal/infrastructure/event"
	"github.com/erp/stockcore/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultExchangeRate is the USD to TJS rate the test stack prices with
var DefaultExchangeRate = decimal.NewFromFloat(10.9)

// Stack is every ledger service wired on one database
type Stack struct {
	DB          *gorm.DB
	Scope       *persistence.GormTransactionScope
	Recipes     *persistence.GormRecipeDirectory
	Documents   *ledger.DocumentService
	Ingredients *ledger.IngredientLedger
	Products    *ledger.ProductLedger
	Production  *productionapp.Engine
	Transfers   *transferapp.Engine
	Inventories *stocktakingapp.Reconciler
}

// StackOption configures NewStack
type StackOption func(*stackOptions)

type stackOptions struct {
	production productionapp.Config
	rates      production.ExchangeRateProvider
}

// WithProductionConfig overrides the production engine settings
func WithProductionConfig(cfg productionapp.Config) StackOption {
	return func(o *stackOptions) { o.production = cfg }
}

// WithExchangeRates overrides the exchange rate source
func WithExchangeRates(p production.ExchangeRateProvider) StackOption {
	return func(o *stackOptions) { o.rates = p }
}

// NewStack wires the services on a fresh sqlite database.
// Domain events go to the outbox table so tests can inspect them.
func NewStack(t *testing.T, opts ...StackOption) *Stack {
	t.Helper()
	return NewStackOn(t, NewSQLiteDB(t), opts...)
}

// NewStackOn wires the services on db
func NewStackOn(t *testing.T, db *gorm.DB, opts ...StackOption) *Stack {
	t.Helper()

	o := stackOptions{
		production: productionapp.Config{ShelfLifeDays: 30, Costing: production.CostingWeightedAverage},
		rates:      cache.NewStaticExchangeRateProvider(DefaultExchangeRate),
	}
	for _, opt := range opts {
		opt(&o)
	}

	scope := persistence.NewGormTransactionScope(db,
		persistence.WithOutbox(event.NewOutboxPublisher(event.NewLedgerEventSerializer())),
	)
	recipes := persistence.NewGormRecipeDirectory(db)
	ingredients := ledger.NewIngredientLedger(scope, nil, nil)
	products := ledger.NewProductLedger(scope, nil, nil)

	return &Stack{
		DB:          db,
		Scope:       scope,
		Recipes:     recipes,
		Documents:   ledger.NewDocumentService(scope, ingredients, nil),
		Ingredients: ingredients,
		Products:    products,
		Production:  productionapp.NewEngine(scope, recipes, o.rates, ingredients, products, o.production, nil, nil),
		Transfers:   transferapp.NewEngine(scope, ingredients, products, nil, nil),
		Inventories: stocktakingapp.NewReconciler(scope, ingredients, products, nil, nil),
	}
}
