package model

import "encoding/json"

// ImportItem is an entry of a shared shopping list awaiting review. Category
// holds the raw display name sent by the sharer and is resolved on commit.
type ImportItem struct {
	Name       string `json:"name" validate:"required,notblank"`
	Quantity   string `json:"quantity,omitempty"`
	Category   string `json:"category,omitempty"`
	RecipeLink string `json:"recipeLink,omitempty"`
	Selected   bool   `json:"isSelected"`
}

// UnmarshalJSON defaults isSelected to true when the field is missing.
func (i *ImportItem) UnmarshalJSON(data []byte) error {
	type alias ImportItem
	aux := struct {
		*alias
		Selected *bool `json:"isSelected"`
	}{alias: (*alias)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	i.Selected = aux.Selected == nil || *aux.Selected
	return nil
}

// ImportData is the payload carried by deep links, shared text and the clipboard.
type ImportData struct {
	Items []ImportItem `json:"items" validate:"dive"`
}
