package shopping

import (
	"slices"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

// DeleteTarget selects what the delete dialog removes.
type DeleteTarget string

const (
	DeleteAll           DeleteTarget = "all"
	DeleteCompletedOnly DeleteTarget = "completed"
)

func (t DeleteTarget) valid() bool {
	return t == DeleteAll || t == DeleteCompletedOnly
}

// UIState is the client-facing view of the orchestrator. A nil review list
// means no review is pending; an empty one means the review has no entries.
type UIState struct {
	Loading          bool               `json:"loading"`
	Error            string             `json:"error,omitempty"`
	AnalyzingRecipe  bool               `json:"analyzing_recipe"`
	Ingredients      []model.Ingredient `json:"ingredients"`
	ImportItems      []model.ImportItem `json:"import_items"`
	ShowDeleteDialog bool               `json:"show_delete_dialog"`
	DeleteTarget     DeleteTarget       `json:"delete_target,omitempty"`
}

func (s UIState) clone() UIState {
	s.Ingredients = slices.Clone(s.Ingredients)
	s.ImportItems = slices.Clone(s.ImportItems)
	return s
}

// StateCallback receives a copy of the state after every change. It runs with
// the service lock held and must not call back into the service.
type StateCallback func(UIState)
