package store

import (
	"context"
	"testing"
	"time"

	"github.com/kroslabs/quickyshoppy/internal/database"
	"github.com/kroslabs/quickyshoppy/internal/model"
)

func setupItemTestDB(t *testing.T) *ItemStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewItemStore(db)
}

// fakeClock returns strictly increasing times so createdAt ordering is stable.
func fakeClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		next = next.Add(time.Second)
		return next
	}
}

func TestItemAddDefaults(t *testing.T) {
	is := setupItemTestDB(t)

	before := time.Now().Truncate(time.Millisecond)
	id, err := is.Add("Milk", "1L")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	item, err := is.GetByID(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item == nil {
		t.Fatal("expected item, got nil")
	}
	if item.Name != "Milk" {
		t.Errorf("name = %q, want %q", item.Name, "Milk")
	}
	if item.Quantity != "1L" {
		t.Errorf("quantity = %q, want %q", item.Quantity, "1L")
	}
	if item.Category != model.Uncategorised {
		t.Errorf("category = %v, want Uncategorised", item.Category)
	}
	if item.Completed {
		t.Error("expected not completed")
	}
	if item.RecipeLink != "" {
		t.Errorf("recipe link = %q, want empty", item.RecipeLink)
	}
	if item.CreatedAt.Before(before) {
		t.Errorf("createdAt %v is before call time %v", item.CreatedAt, before)
	}
}

func TestItemAddWithDetails(t *testing.T) {
	is := setupItemTestDB(t)

	id, err := is.AddWithDetails("Pasta", "", model.Pantry, "https://example.com/carbonara")
	if err != nil {
		t.Fatalf("add with details: %v", err)
	}
	item, _ := is.GetByID(id)
	if item.Category != model.Pantry {
		t.Errorf("category = %v, want Pantry", item.Category)
	}
	if item.RecipeLink != "https://example.com/carbonara" {
		t.Errorf("recipe link = %q", item.RecipeLink)
	}
	if item.Quantity != "" {
		t.Errorf("quantity = %q, want empty", item.Quantity)
	}
}

func TestItemListOrdering(t *testing.T) {
	is := setupItemTestDB(t)
	is.now = fakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	for _, name := range []string{"first", "second", "third"} {
		if _, err := is.Add(name, ""); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	items, err := is.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"third", "second", "first"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, name := range want {
		if items[i].Name != name {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Name, name)
		}
	}
}

func TestItemUpdates(t *testing.T) {
	is := setupItemTestDB(t)
	id, _ := is.Add("Coffee", "")

	if err := is.UpdateCategory(id, model.CoffeeAndTea); err != nil {
		t.Fatalf("update category: %v", err)
	}
	if err := is.ToggleCompletion(id); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := is.UpdateLink(id, "https://example.com"); err != nil {
		t.Fatalf("update link: %v", err)
	}

	item, _ := is.GetByID(id)
	if item.Category != model.CoffeeAndTea {
		t.Errorf("category = %v, want Coffee & Tea", item.Category)
	}
	if !item.Completed {
		t.Error("expected completed after toggle")
	}
	if item.RecipeLink != "https://example.com" {
		t.Errorf("link = %q", item.RecipeLink)
	}

	is.ToggleCompletion(id)
	is.UpdateLink(id, "")
	item, _ = is.GetByID(id)
	if item.Completed {
		t.Error("expected open after second toggle")
	}
	if item.RecipeLink != "" {
		t.Errorf("link = %q, want cleared", item.RecipeLink)
	}
}

func TestItemMissingIDIsNoop(t *testing.T) {
	is := setupItemTestDB(t)
	id, _ := is.Add("Bread", "")

	if err := is.UpdateCategory(9999, model.Sweets); err != nil {
		t.Errorf("update category on missing id: %v", err)
	}
	if err := is.ToggleCompletion(9999); err != nil {
		t.Errorf("toggle on missing id: %v", err)
	}
	if err := is.UpdateLink(9999, "x"); err != nil {
		t.Errorf("update link on missing id: %v", err)
	}
	if err := is.Delete(9999); err != nil {
		t.Errorf("delete missing id: %v", err)
	}

	items, _ := is.List()
	if len(items) != 1 || items[0].ID != id || items[0].Category != model.Uncategorised {
		t.Errorf("store changed: %+v", items)
	}

	got, err := is.GetByID(9999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent item")
	}
}

func TestItemDeleteCompleted(t *testing.T) {
	is := setupItemTestDB(t)

	a, _ := is.Add("a", "")
	b, _ := is.Add("b", "")
	c, _ := is.Add("c", "")
	is.ToggleCompletion(a)
	is.ToggleCompletion(c)

	n, err := is.DeleteCompleted()
	if err != nil {
		t.Fatalf("delete completed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	items, _ := is.List()
	if len(items) != 1 || items[0].ID != b {
		t.Fatalf("remaining = %+v, want only b", items)
	}

	// Nothing completed left: idempotent.
	n, err = is.DeleteCompleted()
	if err != nil || n != 0 {
		t.Errorf("second delete completed = %d, %v", n, err)
	}
}

func TestItemDeleteAll(t *testing.T) {
	is := setupItemTestDB(t)
	is.Add("a", "")
	is.Add("b", "")

	n, err := is.DeleteAll()
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	items, _ := is.List()
	if len(items) != 0 {
		t.Errorf("expected empty store, got %d items", len(items))
	}
	if _, err := is.DeleteAll(); err != nil {
		t.Errorf("delete all on empty store: %v", err)
	}
}

func receive(t *testing.T, ch <-chan []model.ShoppingItem) []model.ShoppingItem {
	t.Helper()
	select {
	case items, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return items
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return nil
}

func TestItemWatch(t *testing.T) {
	is := setupItemTestDB(t)
	is.Add("existing", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := is.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Replay of the current value on subscribe.
	if got := receive(t, ch); len(got) != 1 || got[0].Name != "existing" {
		t.Fatalf("initial snapshot = %+v", got)
	}

	id, _ := is.Add("new", "")
	if got := receive(t, ch); len(got) != 2 {
		t.Fatalf("snapshot after add has %d items, want 2", len(got))
	}

	is.UpdateCategory(id, model.Eggs)
	got := receive(t, ch)
	if got[0].ID != id || got[0].Category != model.Eggs {
		t.Errorf("snapshot after update = %+v", got[0])
	}

	is.Delete(id)
	if got := receive(t, ch); len(got) != 1 {
		t.Errorf("snapshot after delete has %d items, want 1", len(got))
	}
}

func TestItemWatchLatestWins(t *testing.T) {
	is := setupItemTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := is.Watch(ctx)

	// Not reading: each change replaces the pending snapshot.
	is.Add("a", "")
	is.Add("b", "")
	is.Add("c", "")

	if got := receive(t, ch); len(got) != 3 {
		t.Errorf("pending snapshot has %d items, want 3", len(got))
	}
}

func TestItemWatchClosesOnCancel(t *testing.T) {
	is := setupItemTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := is.Watch(ctx)
	receive(t, ch)

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	// Mutations after unsubscribe must not panic on the closed channel.
	if _, err := is.Add("after", ""); err != nil {
		t.Fatalf("add after cancel: %v", err)
	}
	if n := is.WatcherCount(); n != 0 {
		t.Errorf("watchers = %d, want 0", n)
	}
}
