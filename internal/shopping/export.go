package shopping

import (
	"fmt"
	"strings"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

// ExportText renders the current list grouped by category in declaration
// order. Empty groups are skipped.
func (s *Service) ExportText() (string, error) {
	items, err := s.items.List()
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return FormatExport(items), nil
}

// FormatExport renders items as plain text, one group per category with a
// "<emoji> <name>" header and "✓ " or "• " line prefixes.
func FormatExport(items []model.ShoppingItem) string {
	groups := make(map[model.Category][]model.ShoppingItem)
	for _, item := range items {
		groups[item.Category] = append(groups[item.Category], item)
	}

	var blocks []string
	for _, c := range model.Categories() {
		group := groups[c]
		if len(group) == 0 {
			continue
		}
		var sb strings.Builder
		sb.WriteString(c.Emoji())
		sb.WriteByte(' ')
		sb.WriteString(c.DisplayName())
		for _, item := range group {
			sb.WriteByte('\n')
			if item.Completed {
				sb.WriteString("✓ ")
			} else {
				sb.WriteString("• ")
			}
			sb.WriteString(item.DisplayName())
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}
