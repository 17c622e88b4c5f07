// Package bill turns a table session into the lines printed on a single receipt.
package bill

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bistro/pkg/session"
)

// NameLookup resolves a menu item id to its display name.
type NameLookup func(menuItemID int64) (string, bool)

// LineItem is one receipt line: every purchase of a menu item across the session, merged.
type LineItem struct {
	MenuItemID  int64           `json:"menu_item_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	Note        string          `json:"note,omitempty"`
}

// FallbackName is printed when the catalog has no name for an item.
func FallbackName(menuItemID int64) string {
	return fmt.Sprintf("Item #%d", menuItemID)
}

// CatalogLookup indexes a menu catalog. When ids repeat the first entry wins.
func CatalogLookup(menu []session.MenuItem) NameLookup {
	names := make(map[int64]string, len(menu))
	for _, item := range menu {
		if _, seen := names[item.ID]; !seen {
			names[item.ID] = item.Name
		}
	}
	return func(id int64) (string, bool) {
		name, ok := names[id]
		return name, ok
	}
}

// Consolidate merges repeat purchases of the same menu item into one line.
//
// Items are visited in session order (orders, then items within each order) and
// lines come out in first-seen order. The first occurrence fixes unit price and
// note; later ones only add quantity and line total. Stored line totals are summed
// as-is, never recomputed from quantity and price. Orders are included whatever
// their status.
func Consolidate(s session.Session, names NameLookup) []LineItem {
	lines := make([]LineItem, 0)
	index := make(map[int64]int)
	for _, order := range s.Orders {
		for _, item := range order.Items {
			if i, ok := index[item.MenuItemID]; ok {
				lines[i].Quantity += item.Quantity
				lines[i].LineTotal = lines[i].LineTotal.Add(item.LineTotal)
				continue
			}
			index[item.MenuItemID] = len(lines)
			lines = append(lines, LineItem{
				MenuItemID:  item.MenuItemID,
				Name:        resolveName(names, item.MenuItemID),
				Quantity:    item.Quantity,
				LineTotal:   item.LineTotal,
				PriceAtTime: item.PriceAtTime,
				Note:        item.Note,
			})
		}
	}
	return lines
}

// Totals sums quantities and amounts over consolidated lines.
func Totals(lines []LineItem) (int, decimal.Decimal) {
	quantity := 0
	amount := decimal.Zero
	for _, line := range lines {
		quantity += line.Quantity
		amount = amount.Add(line.LineTotal)
	}
	return quantity, amount
}

func resolveName(names NameLookup, id int64) string {
	if names == nil {
		return FallbackName(id)
	}
	if name, ok := names(id); ok && name != "" {
		return name
	}
	return FallbackName(id)
}
