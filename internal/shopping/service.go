// Package shopping sequences user actions, item store writes and calls to the
// classification service, and owns the transient review state.
package shopping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kroslabs/quickyshoppy/internal/activity"
	"github.com/kroslabs/quickyshoppy/internal/metrics"
	"github.com/kroslabs/quickyshoppy/internal/model"
)

const (
	tagShopping       = "Shopping"
	tagCategorization = "AI-Categorization"
	tagRecipe         = "AI-Recipe"
	tagImport         = "Import"
	tagSettings       = "Settings"

	msgNoAPIKey = "Please set your Claude API key in settings"
)

var (
	ErrNoAPIKey        = errors.New("claude API key not configured")
	ErrBlankAPIKey     = errors.New("api key must not be blank")
	ErrNoReview        = errors.New("no review pending")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNoDeleteDialog  = errors.New("delete dialog not shown")
	ErrInvalidTarget   = errors.New("invalid delete target")
	ErrClosed          = errors.New("service closed")
)

// ItemStore is the persistence the service writes through.
type ItemStore interface {
	List() ([]model.ShoppingItem, error)
	Add(name, quantity string) (int64, error)
	AddWithDetails(name, quantity string, category model.Category, recipeLink string) (int64, error)
	UpdateCategory(id int64, category model.Category) error
	ToggleCompletion(id int64) error
	UpdateLink(id int64, link string) error
	Delete(id int64) error
	DeleteCompleted() (int64, error)
	DeleteAll() (int64, error)
}

// Classifier categorizes item names and reads recipe photos.
type Classifier interface {
	Categorize(ctx context.Context, apiKey, name string) (model.Category, error)
	ExtractIngredients(ctx context.Context, apiKey string, image []byte) ([]model.Ingredient, error)
}

// KeyStore holds the classification API key. An empty key means none is set.
type KeyStore interface {
	APIKey() (string, error)
	SaveAPIKey(key string) error
	ClearAPIKey() error
}

// Service is the shopping list orchestrator. Create it with NewService and
// stop it with Close, which waits for background categorizations.
type Service struct {
	items      ItemStore
	classifier Classifier
	keys       KeyStore
	activity   *activity.Log
	logger     *slog.Logger

	mu      sync.Mutex
	state   UIState
	onState StateCallback
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(items ItemStore, classifier Classifier, keys KeyStore, log *activity.Log, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		items:      items,
		classifier: classifier,
		keys:       keys,
		activity:   log,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnStateChange registers the callback invoked after every state change.
func (s *Service) OnStateChange(fn StateCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns a copy of the current UI state.
func (s *Service) State() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Wait blocks until in-flight categorizations finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops accepting background work, cancels in-flight categorizations
// and waits for them to return.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// update applies fn to the state and publishes the result.
func (s *Service) update(fn func(*UIState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.publishLocked()
}

func (s *Service) publishLocked() {
	if s.onState != nil {
		s.onState(s.state.clone())
	}
}

// ClearError dismisses the user-visible error.
func (s *Service) ClearError() {
	s.update(func(st *UIState) { st.Error = "" })
}

// AddItem stores a new item and categorizes it in the background. A blank
// name is ignored and returns id 0.
func (s *Service) AddItem(name, quantity string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}
	quantity = strings.TrimSpace(quantity)

	s.activity.Infof(tagShopping, "Adding item: %s", name)
	id, err := s.items.Add(name, quantity)
	if err != nil {
		s.activity.Errorf(tagShopping, "Failed to add item %s: %v", name, err)
		return 0, fmt.Errorf("add item: %w", err)
	}
	metrics.ItemsAdded.WithLabelValues(metrics.SourceManual).Inc()
	s.activity.Successf(tagShopping, "Item added with ID: %d", id)

	s.categorizeAsync(id, name)
	return id, nil
}

func (s *Service) categorizeAsync(id int64, name string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.categorize(s.ctx, id, name)
	}()
}

// categorize never surfaces an error: failures only reach the activity log
// and the item keeps its current category.
func (s *Service) categorize(ctx context.Context, id int64, name string) {
	apiKey, err := s.keys.APIKey()
	if err != nil {
		s.activity.Errorf(tagCategorization, "Could not read API key: %v", err)
		metrics.Categorizations.WithLabelValues(metrics.OutcomeFailure).Inc()
		return
	}
	if apiKey == "" {
		s.activity.Warningf(tagCategorization, "No API key configured, skipping categorization for: %s", name)
		metrics.Categorizations.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return
	}

	s.activity.Infof(tagCategorization, "Requesting category for: %s", name)
	category, err := s.classifier.Categorize(ctx, apiKey, name)
	if err != nil {
		s.activity.Errorf(tagCategorization, "Failed to categorize %s: %v", name, err)
		metrics.Categorizations.WithLabelValues(metrics.OutcomeFailure).Inc()
		return
	}

	if err := s.items.UpdateCategory(id, category); err != nil {
		s.logger.Error("update category", "item_id", id, "error", err)
		s.activity.Errorf(tagCategorization, "Failed to save category for %s: %v", name, err)
		metrics.Categorizations.WithLabelValues(metrics.OutcomeFailure).Inc()
		return
	}
	metrics.Categorizations.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.activity.Successf(tagCategorization, "Categorized %s as %s", name, category.DisplayName())
}

// AnalyzeRecipePhoto extracts ingredients from a photo into the ingredient
// review. Unlike categorization, failures are surfaced in the UI state.
func (s *Service) AnalyzeRecipePhoto(ctx context.Context, image []byte) error {
	apiKey, err := s.keys.APIKey()
	if err != nil {
		s.activity.Errorf(tagRecipe, "Could not read API key: %v", err)
		s.update(func(st *UIState) { st.Error = "Could not read API key: " + err.Error() })
		return fmt.Errorf("read api key: %w", err)
	}
	if apiKey == "" {
		s.activity.Warning(tagRecipe, "Recipe analysis requested without an API key")
		s.update(func(st *UIState) { st.Error = msgNoAPIKey })
		return ErrNoAPIKey
	}

	s.activity.Infof(tagRecipe, "Analyzing recipe photo (%d bytes)", len(image))
	s.update(func(st *UIState) {
		st.AnalyzingRecipe = true
		st.Error = ""
	})

	ingredients, err := s.classifier.ExtractIngredients(ctx, apiKey, image)
	if err != nil {
		metrics.RecipeAnalyses.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.activity.Errorf(tagRecipe, "Recipe analysis failed: %v", err)
		s.update(func(st *UIState) {
			st.AnalyzingRecipe = false
			st.Error = "Failed to analyze recipe: " + err.Error()
		})
		return fmt.Errorf("analyze recipe: %w", err)
	}

	if ingredients == nil {
		ingredients = []model.Ingredient{}
	}
	metrics.RecipeAnalyses.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.activity.Successf(tagRecipe, "Found %d ingredients", len(ingredients))
	s.update(func(st *UIState) {
		st.AnalyzingRecipe = false
		st.Ingredients = ingredients
	})
	return nil
}

// ToggleIngredient flips the selection of one pending ingredient.
func (s *Service) ToggleIngredient(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Ingredients == nil {
		return ErrNoReview
	}
	if index < 0 || index >= len(s.state.Ingredients) {
		return ErrIndexOutOfRange
	}
	next := append([]model.Ingredient(nil), s.state.Ingredients...)
	next[index].Selected = !next[index].Selected
	s.state.Ingredients = next
	s.publishLocked()
	return nil
}

// SelectAllIngredients sets the selection of every pending ingredient.
func (s *Service) SelectAllIngredients(selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Ingredients == nil {
		return ErrNoReview
	}
	next := make([]model.Ingredient, len(s.state.Ingredients))
	for i, ing := range s.state.Ingredients {
		ing.Selected = selected
		next[i] = ing
	}
	s.state.Ingredients = next
	s.publishLocked()
	return nil
}

// CommitIngredients adds the selected ingredients to the list, categorizes
// each one and ends the review. It returns the number of items added. The
// review is claimed before anything is written, so a concurrent commit gets
// ErrNoReview. On a store failure the entries not yet persisted are put back
// unless another review has been opened meanwhile.
func (s *Service) CommitIngredients() (int, error) {
	s.mu.Lock()
	pending := s.state.Ingredients
	if pending == nil {
		s.mu.Unlock()
		return 0, ErrNoReview
	}
	s.state.Ingredients = nil
	s.state.Loading = true
	s.publishLocked()
	s.mu.Unlock()

	added := 0
	failedAt := -1
	var err error
	for i, ing := range pending {
		if !ing.Selected {
			continue
		}
		var id int64
		id, err = s.items.Add(ing.Name, ing.Quantity)
		if err != nil {
			s.activity.Errorf(tagRecipe, "Failed to add ingredient %s: %v", ing.Name, err)
			failedAt = i
			break
		}
		added++
		metrics.ItemsAdded.WithLabelValues(metrics.SourceIngredient).Inc()
		s.categorizeAsync(id, ing.Name)
	}

	s.update(func(st *UIState) {
		st.Loading = false
		if failedAt >= 0 && st.Ingredients == nil {
			st.Ingredients = unpersisted(pending, failedAt, func(ing model.Ingredient) bool { return ing.Selected })
		}
	})
	if err != nil {
		return added, fmt.Errorf("commit ingredients: %w", err)
	}
	s.activity.Successf(tagRecipe, "Added %d ingredients to the list", added)
	return added, nil
}

// unpersisted returns the entries a commit did not write: everything from the
// failed entry on, plus earlier entries that were not selected.
func unpersisted[T any](pending []T, failedAt int, selected func(T) bool) []T {
	rest := make([]T, 0, len(pending)-failedAt)
	for i, e := range pending {
		if i >= failedAt || !selected(e) {
			rest = append(rest, e)
		}
	}
	return rest
}

// CancelIngredients discards the ingredient review without saving anything.
func (s *Service) CancelIngredients() {
	s.update(func(st *UIState) { st.Ingredients = nil })
}

// SetImportItems opens the import review with the decoded items.
func (s *Service) SetImportItems(items []model.ImportItem) {
	next := make([]model.ImportItem, len(items))
	copy(next, items)
	s.activity.Infof(tagImport, "Received %d items to import", len(next))
	s.update(func(st *UIState) { st.ImportItems = next })
}

func (s *Service) ToggleImportItem(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ImportItems == nil {
		return ErrNoReview
	}
	if index < 0 || index >= len(s.state.ImportItems) {
		return ErrIndexOutOfRange
	}
	next := append([]model.ImportItem(nil), s.state.ImportItems...)
	next[index].Selected = !next[index].Selected
	s.state.ImportItems = next
	s.publishLocked()
	return nil
}

func (s *Service) SelectAllImportItems(selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ImportItems == nil {
		return ErrNoReview
	}
	next := make([]model.ImportItem, len(s.state.ImportItems))
	for i, item := range s.state.ImportItems {
		item.Selected = selected
		next[i] = item
	}
	s.state.ImportItems = next
	s.publishLocked()
	return nil
}

// CommitImportItems adds the selected import items. Items that arrived with
// a category keep it; the rest are categorized in the background. The review
// is claimed and restored the same way as in CommitIngredients.
func (s *Service) CommitImportItems() (int, error) {
	s.mu.Lock()
	pending := s.state.ImportItems
	if pending == nil {
		s.mu.Unlock()
		return 0, ErrNoReview
	}
	s.state.ImportItems = nil
	s.state.Loading = true
	s.publishLocked()
	s.mu.Unlock()

	added := 0
	failedAt := -1
	var err error
	for i, item := range pending {
		if !item.Selected {
			continue
		}
		name := strings.TrimSpace(item.Name)
		quantity := strings.TrimSpace(item.Quantity)
		link := strings.TrimSpace(item.RecipeLink)
		categoryName := strings.TrimSpace(item.Category)

		category := model.Uncategorised
		if categoryName != "" {
			category = model.CategoryFromDisplayName(categoryName)
		}

		var id int64
		id, err = s.items.AddWithDetails(name, quantity, category, link)
		if err != nil {
			s.activity.Errorf(tagImport, "Failed to import %s: %v", name, err)
			failedAt = i
			break
		}
		added++
		metrics.ItemsAdded.WithLabelValues(metrics.SourceImport).Inc()
		if categoryName == "" {
			s.categorizeAsync(id, name)
		}
	}

	s.update(func(st *UIState) {
		st.Loading = false
		if failedAt >= 0 && st.ImportItems == nil {
			st.ImportItems = unpersisted(pending, failedAt, func(item model.ImportItem) bool { return item.Selected })
		}
	})
	if err != nil {
		return added, fmt.Errorf("commit import: %w", err)
	}
	s.activity.Successf(tagImport, "Imported %d items", added)
	return added, nil
}

func (s *Service) CancelImportItems() {
	s.update(func(st *UIState) { st.ImportItems = nil })
}

// ShowDeleteDialog asks for confirmation before a bulk delete.
func (s *Service) ShowDeleteDialog(target DeleteTarget) error {
	if !target.valid() {
		return ErrInvalidTarget
	}
	s.update(func(st *UIState) {
		st.ShowDeleteDialog = true
		st.DeleteTarget = target
	})
	return nil
}

func (s *Service) HideDeleteDialog() {
	s.update(func(st *UIState) {
		st.ShowDeleteDialog = false
		st.DeleteTarget = ""
	})
}

// ConfirmDelete runs the bulk delete chosen in the dialog and hides it.
func (s *Service) ConfirmDelete() (int64, error) {
	s.mu.Lock()
	shown, target := s.state.ShowDeleteDialog, s.state.DeleteTarget
	s.mu.Unlock()
	if !shown {
		return 0, ErrNoDeleteDialog
	}

	var n int64
	var err error
	switch target {
	case DeleteCompletedOnly:
		n, err = s.items.DeleteCompleted()
	default:
		n, err = s.items.DeleteAll()
	}

	s.HideDeleteDialog()
	if err != nil {
		s.activity.Errorf(tagShopping, "Bulk delete failed: %v", err)
		return 0, fmt.Errorf("delete %s: %w", target, err)
	}
	s.activity.Infof(tagShopping, "Deleted %d items (%s)", n, target)
	return n, nil
}

// ToggleItem flips an item's completion.
func (s *Service) ToggleItem(id int64) error {
	if err := s.items.ToggleCompletion(id); err != nil {
		return fmt.Errorf("toggle item %d: %w", id, err)
	}
	return nil
}

func (s *Service) DeleteItem(id int64) error {
	if err := s.items.Delete(id); err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	s.activity.Infof(tagShopping, "Deleted item %d", id)
	return nil
}

// MoveItemToCategory overrides the category chosen by the classifier.
func (s *Service) MoveItemToCategory(id int64, category model.Category) error {
	if err := s.items.UpdateCategory(id, category); err != nil {
		return fmt.Errorf("move item %d: %w", id, err)
	}
	s.activity.Infof(tagShopping, "Moved item %d to %s", id, category.DisplayName())
	return nil
}

// UpdateItemLink sets the recipe link; a blank link clears it.
func (s *Service) UpdateItemLink(id int64, link string) error {
	link = strings.TrimSpace(link)
	if err := s.items.UpdateLink(id, link); err != nil {
		return fmt.Errorf("update link %d: %w", id, err)
	}
	return nil
}

// SaveAPIKey stores a non-blank API key.
func (s *Service) SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrBlankAPIKey
	}
	if err := s.keys.SaveAPIKey(key); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	s.activity.Successf(tagSettings, "API key saved: %s...", keyPrefix(key))
	return nil
}

func (s *Service) ClearAPIKey() error {
	if err := s.keys.ClearAPIKey(); err != nil {
		return fmt.Errorf("clear api key: %w", err)
	}
	s.activity.Info(tagSettings, "API key cleared")
	return nil
}

// APIKeyConfigured reports whether a key is stored.
func (s *Service) APIKeyConfigured() (bool, error) {
	key, err := s.keys.APIKey()
	if err != nil {
		return false, err
	}
	return key != "", nil
}

func keyPrefix(key string) string {
	r := []rune(key)
	if len(r) > 10 {
		r = r[:10]
	}
	return string(r)
}
