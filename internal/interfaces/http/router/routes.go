package router

import (
	"net/http"

	"github.com/erp/stockcore/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers of the ledger API
type Handlers struct {
	Documents   *handler.DocumentHandler
	Ingredients *handler.IngredientHandler
	Products    *handler.ProductHandler
	Recipes     *handler.RecipeHandler
	Batches     *handler.BatchHandler
	Transfers   *handler.TransferHandler
	Inventories *handler.InventoryHandler
	System      *handler.SystemHandler
}

// Mount registers every ledger route on r
func Mount(r *Router, h Handlers) *Router {
	r.Root(http.MethodGet, "/health", h.System.Health)

	system := NewResource("/system").
		GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)

	documents := NewResource("/documents").
		GET("", h.Documents.List).
		POST("/receipts", h.Documents.PostReceipt).
		POST("/write-offs", h.Documents.PostWriteOff).
		GET("/:id", h.Documents.GetByID).
		POST("/:id/reverse", h.Documents.Reverse)

	branches := NewResource("/branches/:branch_id")
	branches.Nest("/ingredients").
		GET("", h.Ingredients.ListBalances).
		GET("/:ingredient_id", h.Ingredients.GetStock).
		PUT("/:ingredient_id", h.Ingredients.SetAbsolute).
		GET("/:ingredient_id/movements", h.Ingredients.ListMovements).
		POST("/:ingredient_id/movements", h.Ingredients.ApplyMovement)
	branches.Nest("/products").
		GET("", h.Products.ListBalances).
		GET("/:recipe_id", h.Products.GetBalance).
		PUT("/:recipe_id", h.Products.SetAbsolute).
		GET("/:recipe_id/lots", h.Products.ListLots).
		POST("/:recipe_id/lots", h.Products.AddLot).
		POST("/:recipe_id/deductions", h.Products.Deduct).
		GET("/:recipe_id/movements", h.Products.ListMovements).
		POST("/:recipe_id/movements", h.Products.RecordMovement).
		POST("/:recipe_id/transfer", h.Products.Transfer)

	recipes := NewResource("/recipes").
		POST("/versions", h.Recipes.RegisterVersion).
		GET("/versions/:id", h.Recipes.GetVersion)

	batches := NewResource("/batches").
		GET("", h.Batches.List).
		POST("", h.Batches.Plan).
		GET("/:id", h.Batches.GetByID).
		POST("/:id/start", h.Batches.Start).
		POST("/:id/complete", h.Batches.Complete).
		POST("/:id/cancel", h.Batches.Cancel)

	transfers := NewResource("/transfers").
		GET("", h.Transfers.List).
		POST("", h.Transfers.Create).
		GET("/:id", h.Transfers.GetByID).
		POST("/:id/send", h.Transfers.Send).
		POST("/:id/receive", h.Transfers.Receive).
		POST("/:id/cancel", h.Transfers.Cancel)

	inventories := NewResource("/inventories").
		GET("", h.Inventories.List).
		POST("", h.Inventories.Create).
		GET("/:id", h.Inventories.GetByID).
		POST("/:id/start", h.Inventories.Start).
		POST("/:id/complete", h.Inventories.Complete).
		POST("/:id/cancel", h.Inventories.Cancel)

	return r.Register(system, documents, branches, recipes, batches, transfers, inventories)
}
