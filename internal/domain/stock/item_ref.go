package stock

import (
	"fmt"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemKind discriminates what an ItemRef points at
type ItemKind string

const (
	ItemKindIngredient ItemKind = "INGREDIENT"
	ItemKindProduct    ItemKind = "PRODUCT"
)

// IsValid checks if the item kind is valid
func (k ItemKind) IsValid() bool {
	return k == ItemKindIngredient || k == ItemKindProduct
}

// ItemRef identifies either an ingredient or a finished product (by recipe).
// Documents that mix both kinds never need a sibling enum to interpret the ID.
type ItemRef struct {
	Kind ItemKind
	ID   uuid.UUID
}

// IngredientRef references an ingredient
func IngredientRef(ingredientID uuid.UUID) ItemRef {
	return ItemRef{Kind: ItemKindIngredient, ID: ingredientID}
}

// ProductRef references the finished product of a recipe
func ProductRef(recipeID uuid.UUID) ItemRef {
	return ItemRef{Kind: ItemKindProduct, ID: recipeID}
}

// IsIngredient reports whether the reference points at an ingredient
func (r ItemRef) IsIngredient() bool {
	return r.Kind == ItemKindIngredient
}

// IsProduct reports whether the reference points at a finished product
func (r ItemRef) IsProduct() bool {
	return r.Kind == ItemKindProduct
}

// Validate checks kind and ID
func (r ItemRef) Validate() error {
	if !r.Kind.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("invalid item kind %q", r.Kind))
	}
	if r.ID == uuid.Nil {
		return shared.NewValidationError("item ID cannot be empty")
	}
	return nil
}

func (r ItemRef) String() string {
	switch r.Kind {
	case ItemKindIngredient:
		return "ingredient:" + r.ID.String()
	case ItemKindProduct:
		return "product:" + r.ID.String()
	default:
		return "unknown:" + r.ID.String()
	}
}

// Category is the stock class a transfer or inventory count works on
type Category string

const (
	CategoryRawMaterials     Category = "RAW_MATERIALS"
	CategoryFinishedProducts Category = "FINISHED_PRODUCTS"
)

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	return c == CategoryRawMaterials || c == CategoryFinishedProducts
}

// ItemKind returns the kind of item this category holds
func (c Category) ItemKind() ItemKind {
	if c == CategoryFinishedProducts {
		return ItemKindProduct
	}
	return ItemKindIngredient
}

// Accepts reports whether ref belongs to this category
func (c Category) Accepts(ref ItemRef) bool {
	return c.IsValid() && ref.Kind == c.ItemKind()
}
