package model

import (
	"strings"
	"time"
)

// ShoppingItem is a persisted list entry. Empty Quantity and RecipeLink mean
// the value is absent.
type ShoppingItem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Quantity   string    `json:"quantity,omitempty"`
	Category   Category  `json:"category"`
	Completed  bool      `json:"completed"`
	RecipeLink string    `json:"recipe_link,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DisplayName renders "name" or "name (quantity)".
func (i ShoppingItem) DisplayName() string {
	if strings.TrimSpace(i.Quantity) == "" {
		return i.Name
	}
	return i.Name + " (" + i.Quantity + ")"
}

// Ingredient is one line extracted from a recipe photo, pending review.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Selected bool   `json:"selected"`
}
