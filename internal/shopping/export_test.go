package shopping

import (
	"testing"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

func TestFormatExport(t *testing.T) {
	items := []model.ShoppingItem{
		{Name: "Milk", Category: model.MilkProducts},
		{Name: "Bread", Category: model.BreadProducts, Completed: true},
	}
	want := "🍞 Bread Products\n✓ Bread\n\n🥛 Milk Products\n• Milk"
	if got := FormatExport(items); got != want {
		t.Errorf("export =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatExportGrouping(t *testing.T) {
	items := []model.ShoppingItem{
		{Name: "Cola", Category: model.Beverages},
		{Name: "Mystery", Category: model.Uncategorised},
		{Name: "Flour", Quantity: "1kg", Category: model.Pantry},
		{Name: "Sugar", Category: model.Pantry, Completed: true},
	}
	want := "❓ Uncategorised\n• Mystery\n\n" +
		"🏺 Pantry\n• Flour (1kg)\n✓ Sugar\n\n" +
		"🥤 Beverages\n• Cola"
	if got := FormatExport(items); got != want {
		t.Errorf("export =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatExportEmpty(t *testing.T) {
	if got := FormatExport(nil); got != "" {
		t.Errorf("export of empty list = %q", got)
	}
}

func TestExportTextUsesStoreOrder(t *testing.T) {
	f := setup(t, "")
	f.svc.AddItem("Milk", "")
	f.svc.AddItem("Bread", "2")

	got, err := f.svc.ExportText()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	// Newest first within the group.
	want := "❓ Uncategorised\n• Bread (2)\n• Milk"
	if got != want {
		t.Errorf("export = %q, want %q", got, want)
	}
}
