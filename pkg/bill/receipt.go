package bill

import (
	"time"

	"bistro/pkg/format"
	"bistro/pkg/session"
)

// ReceiptLine is a consolidated line with its money already formatted.
type ReceiptLine struct {
	LineItem
	UnitPrice string `json:"unit_price"`
	Amount    string `json:"amount"`
}

// Receipt is everything printed on the customer copy.
type Receipt struct {
	SessionID  int64         `json:"session_id"`
	TableID    int64         `json:"table_id"`
	Guest      string        `json:"guest,omitempty"`
	Date       string        `json:"date"`
	Time       string        `json:"time"`
	Lines      []ReceiptLine `json:"lines"`
	ItemCount  int           `json:"item_count"`
	Total      string        `json:"total"`
	Closed     bool          `json:"closed"`
	Consistent bool          `json:"consistent"`
	Mismatch   string        `json:"mismatch,omitempty"`
}

// Items strips formatting back off the lines.
func (r Receipt) Items() []LineItem {
	items := make([]LineItem, 0, len(r.Lines))
	for _, line := range r.Lines {
		items = append(items, line.LineItem)
	}
	return items
}

// BuildReceipt consolidates the session and formats it for printing. The stamp is
// the session's end time, or now while the table is still open. The total is the
// session's own total_bill.
func BuildReceipt(s session.Session, names NameLookup, now time.Time) Receipt {
	stamp := now.UTC().Format(time.RFC3339)
	if s.IsClosed() {
		stamp = *s.EndedAt
	}
	date, clock := format.ReceiptTimestamp(stamp)

	items := Consolidate(s, names)
	lines := make([]ReceiptLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, ReceiptLine{
			LineItem:  item,
			UnitPrice: format.Money(item.PriceAtTime),
			Amount:    format.Money(item.LineTotal),
		})
	}
	count, _ := Totals(items)

	receipt := Receipt{
		SessionID:  s.ID,
		TableID:    s.TableID,
		Guest:      s.Guest(),
		Date:       date,
		Time:       clock,
		Lines:      lines,
		ItemCount:  count,
		Total:      format.Money(s.TotalBill),
		Closed:     s.IsClosed(),
		Consistent: true,
	}
	if err := Reconcile(s, items); err != nil {
		receipt.Consistent = false
		receipt.Mismatch = err.Error()
	}
	return receipt
}
