package handler

import (
	"context"
	"time"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipeStore reads and registers pinned recipe versions
type RecipeStore interface {
	production.RecipeDirectory
	Save(ctx context.Context, v *production.RecipeVersion, at time.Time) error
}

// RecipeHandler registers the recipe versions production batches pin
type RecipeHandler struct {
	BaseHandler
	recipes RecipeStore
}

// NewRecipeHandler creates a new RecipeHandler
func NewRecipeHandler(recipes RecipeStore) *RecipeHandler {
	return &RecipeHandler{recipes: recipes}
}

// RecipeLineRequest is one ingredient or packaging line of a recipe version
type RecipeLineRequest struct {
	IngredientID uuid.UUID       `json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"gte=0"`
	Unit         string          `json:"unit" binding:"required,max=20"`
	Kind         string          `json:"kind" binding:"omitempty,oneof=INGREDIENT PACKAGING"`
}

// RegisterRecipeVersionRequest stores an immutable recipe version
type RegisterRecipeVersionRequest struct {
	RecipeID      uuid.UUID           `json:"recipe_id" binding:"required"`
	Version       int                 `json:"version" binding:"required,gt=0"`
	OutputVolume  decimal.Decimal     `json:"output_volume" binding:"required,gt=0"`
	OutputUnit    string              `json:"output_unit" binding:"required,max=20"`
	ShelfLifeDays int                 `json:"shelf_life_days" binding:"gte=0"`
	Lines         []RecipeLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// RecipeLineResponse is one line of a recipe version
type RecipeLineResponse struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Kind         string          `json:"kind"`
	Position     int             `json:"position"`
}

// RecipeVersionResponse is a pinned recipe version
type RecipeVersionResponse struct {
	ID            uuid.UUID            `json:"id"`
	RecipeID      uuid.UUID            `json:"recipe_id"`
	Version       int                  `json:"version"`
	OutputVolume  decimal.Decimal      `json:"output_volume"`
	OutputUnit    string               `json:"output_unit"`
	ShelfLifeDays int                  `json:"shelf_life_days"`
	Lines         []RecipeLineResponse `json:"lines"`
}

func toRecipeVersionResponse(v *production.RecipeVersion) RecipeVersionResponse {
	lines := make([]RecipeLineResponse, len(v.Lines))
	for i, l := range v.Lines {
		lines[i] = RecipeLineResponse{
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			Kind:         string(l.Kind),
			Position:     l.Position,
		}
	}
	return RecipeVersionResponse{
		ID:            v.ID,
		RecipeID:      v.RecipeID,
		Version:       v.Version,
		OutputVolume:  v.OutputVolume,
		OutputUnit:    v.OutputUnit,
		ShelfLifeDays: v.ShelfLifeDays,
		Lines:         lines,
	}
}

// RegisterVersion godoc
// @Summary      Register a recipe version
// @Tags         recipes
// @Router       /recipes/versions [post]
func (h *RecipeHandler) RegisterVersion(c *gin.Context) {
	var req RegisterRecipeVersionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	v := &production.RecipeVersion{
		RecipeID:      req.RecipeID,
		Version:       req.Version,
		OutputVolume:  req.OutputVolume,
		OutputUnit:    req.OutputUnit,
		ShelfLifeDays: req.ShelfLifeDays,
		Lines:         make([]production.RecipeLine, len(req.Lines)),
	}
	for i, l := range req.Lines {
		kind := production.LineKind(l.Kind)
		if kind == "" {
			kind = production.LineKindIngredient
		}
		v.Lines[i] = production.RecipeLine{
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			Kind:         kind,
			Position:     i + 1,
		}
	}

	if err := h.recipes.Save(c.Request.Context(), v, h.now()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toRecipeVersionResponse(v))
}

// GetVersion godoc
// @Summary      Get a recipe version
// @Tags         recipes
// @Router       /recipes/versions/{id} [get]
func (h *RecipeHandler) GetVersion(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	v, err := h.recipes.GetRecipeVersion(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRecipeVersionResponse(v))
}
