package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

// ItemStore persists shopping items and pushes a full snapshot to every
// watcher after each mutation.
type ItemStore struct {
	db  *sql.DB
	now func() time.Time

	mu       sync.Mutex
	watchers map[chan []model.ShoppingItem]struct{}
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{
		db:       db,
		now:      time.Now,
		watchers: make(map[chan []model.ShoppingItem]struct{}),
	}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var quantity, recipeLink sql.NullString
	var category string
	var createdAt int64

	err := scanner.Scan(&item.ID, &item.Name, &quantity, &category, &item.Completed, &recipeLink, &createdAt)
	if err != nil {
		return nil, err
	}

	item.Quantity = quantity.String
	item.RecipeLink = recipeLink.String
	item.Category = model.CategoryFromDisplayName(category)
	item.CreatedAt = time.UnixMilli(createdAt)
	return &item, nil
}

const itemCols = `id, name, quantity, category, isCompleted, recipeLink, createdAt`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// List returns every item, newest first.
func (s *ItemStore) List() ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(`SELECT ` + itemCols + ` FROM shopping_items ORDER BY createdAt DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.ShoppingItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ItemStore) GetByID(id int64) (*model.ShoppingItem, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM shopping_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Add inserts an uncategorised, open item and returns its id.
func (s *ItemStore) Add(name, quantity string) (int64, error) {
	return s.AddWithDetails(name, quantity, model.Uncategorised, "")
}

func (s *ItemStore) AddWithDetails(name, quantity string, category model.Category, recipeLink string) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO shopping_items (name, quantity, category, isCompleted, recipeLink, createdAt) VALUES (?, ?, ?, 0, ?, ?)`,
		name, nullString(quantity), category.DisplayName(), nullString(recipeLink), s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	s.notify()
	return id, nil
}

// UpdateCategory, ToggleCompletion and UpdateLink are single-statement
// updates, so concurrent writers to the same row resolve last-writer-wins.
// A missing id is a no-op.
func (s *ItemStore) UpdateCategory(id int64, category model.Category) error {
	return s.exec("update category", `UPDATE shopping_items SET category = ? WHERE id = ?`, category.DisplayName(), id)
}

func (s *ItemStore) ToggleCompletion(id int64) error {
	return s.exec("toggle completion", `UPDATE shopping_items SET isCompleted = NOT isCompleted WHERE id = ?`, id)
}

func (s *ItemStore) UpdateLink(id int64, link string) error {
	return s.exec("update link", `UPDATE shopping_items SET recipeLink = ? WHERE id = ?`, nullString(link), id)
}

func (s *ItemStore) Delete(id int64) error {
	return s.exec("delete item", `DELETE FROM shopping_items WHERE id = ?`, id)
}

// DeleteCompleted removes completed items and returns how many were removed.
func (s *ItemStore) DeleteCompleted() (int64, error) {
	return s.execCount("delete completed", `DELETE FROM shopping_items WHERE isCompleted = 1`)
}

func (s *ItemStore) DeleteAll() (int64, error) {
	return s.execCount("delete all", `DELETE FROM shopping_items`)
}

func (s *ItemStore) exec(op, query string, args ...any) error {
	_, err := s.execCount(op, query, args...)
	return err
}

func (s *ItemStore) execCount(op, query string, args ...any) (int64, error) {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if count > 0 {
		s.notify()
	}
	return count, nil
}

// Watch returns a channel that immediately yields the current item list and
// then a fresh list after every change. A slow reader only ever sees the most
// recent snapshot. The channel is closed when ctx is done.
func (s *ItemStore) Watch(ctx context.Context) (<-chan []model.ShoppingItem, error) {
	ch := make(chan []model.ShoppingItem, 1)

	s.mu.Lock()
	items, err := s.List()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ch <- items
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// WatcherCount returns the number of active watchers.
func (s *ItemStore) WatcherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *ItemStore) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.watchers) == 0 {
		return
	}

	items, err := s.List()
	if err != nil {
		slog.Error("item store: snapshot for watchers", "error", err)
		return
	}

	for ch := range s.watchers {
		// Replace any snapshot the reader has not picked up yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- items:
		default:
		}
	}
}
