package model

import (
	"golang.org/x/text/cases"
)

// Category is the closed set of shopping list sections. Declaration order is the
// display order used when grouping items.
type Category int

const (
	Uncategorised Category = iota
	VegetablesAndFruits
	Vegetarian
	GlucoseFree
	LactoseFree
	BreadProducts
	Sweets
	Pantry
	MilkProducts
	MeatAndSeafood
	Eggs
	CoffeeAndTea
	HouseholdSupplies
	Beverages
	RefrigeratedItems
	Electronics
	Other
)

type categoryInfo struct {
	name  string
	emoji string
}

var categoryTable = [...]categoryInfo{
	Uncategorised:       {"Uncategorised", "❓"},
	VegetablesAndFruits: {"Vegetables and Fruits", "🥬"},
	Vegetarian:          {"Vegetarian", "🥗"},
	GlucoseFree:         {"Glucose-Free", "🚫"},
	LactoseFree:         {"Lactose-Free", "🥥"},
	BreadProducts:       {"Bread Products", "🍞"},
	Sweets:              {"Sweets", "🍬"},
	Pantry:              {"Pantry", "🏺"},
	MilkProducts:        {"Milk Products", "🥛"},
	MeatAndSeafood:      {"Meat and Seafood", "🥩"},
	Eggs:                {"Eggs", "🥚"},
	CoffeeAndTea:        {"Coffee & Tea", "☕"},
	HouseholdSupplies:   {"Household Supplies", "🧹"},
	Beverages:           {"Beverages", "🥤"},
	RefrigeratedItems:   {"Refrigerated Items", "🧊"},
	Electronics:         {"Electronics", "📱"},
	Other:               {"Other", "🔷"},
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categoryTable))
	for i := range categoryTable {
		out[i] = Category(i)
	}
	return out
}

func (c Category) valid() bool {
	return c >= 0 && int(c) < len(categoryTable)
}

// DisplayName returns the stable human-readable name. Out-of-range values
// report as Uncategorised.
func (c Category) DisplayName() string {
	if !c.valid() {
		return categoryTable[Uncategorised].name
	}
	return categoryTable[c].name
}

// Emoji returns the decorative glyph shown next to the category header.
func (c Category) Emoji() string {
	if !c.valid() {
		return categoryTable[Uncategorised].emoji
	}
	return categoryTable[c].emoji
}

func (c Category) String() string {
	return c.DisplayName()
}

// CategoryFromDisplayName resolves a display name case-insensitively.
// Unknown input resolves to Uncategorised, never to Other.
func CategoryFromDisplayName(name string) Category {
	folder := cases.Fold()
	want := folder.String(name)
	for i, info := range categoryTable {
		if folder.String(info.name) == want {
			return Category(i)
		}
	}
	return Uncategorised
}

// MarshalText encodes the category as its display name, which is also the
// representation stored in the database.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.DisplayName()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	*c = CategoryFromDisplayName(string(text))
	return nil
}
