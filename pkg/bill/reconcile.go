package bill

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bistro/pkg/session"
)

// MismatchError names the first place where cached totals disagree with their parts.
type MismatchError struct {
	Scope    string
	OrderID  int64
	Stored   decimal.Decimal
	Computed decimal.Decimal
}

func (e *MismatchError) Error() string {
	switch e.Scope {
	case "order":
		return fmt.Sprintf("order %d: total_amount %s does not match item sum %s", e.OrderID, e.Stored.StringFixed(2), e.Computed.StringFixed(2))
	case "session":
		return fmt.Sprintf("total_bill %s does not match order sum %s", e.Stored.StringFixed(2), e.Computed.StringFixed(2))
	default:
		return fmt.Sprintf("total_bill %s does not match receipt lines %s", e.Stored.StringFixed(2), e.Computed.StringFixed(2))
	}
}

// Reconcile checks that item line totals, order totals, the session bill and the
// consolidated lines all agree. It only reports; nothing is corrected.
func Reconcile(s session.Session, lines []LineItem) error {
	orderSum := decimal.Zero
	for _, order := range s.Orders {
		itemSum := decimal.Zero
		for _, item := range order.Items {
			itemSum = itemSum.Add(item.LineTotal)
		}
		if !itemSum.Equal(order.TotalAmount) {
			return &MismatchError{Scope: "order", OrderID: order.ID, Stored: order.TotalAmount, Computed: itemSum}
		}
		orderSum = orderSum.Add(order.TotalAmount)
	}
	if !orderSum.Equal(s.TotalBill) {
		return &MismatchError{Scope: "session", Stored: s.TotalBill, Computed: orderSum}
	}
	if _, lineSum := Totals(lines); !lineSum.Equal(s.TotalBill) {
		return &MismatchError{Scope: "lines", Stored: s.TotalBill, Computed: lineSum}
	}
	return nil
}
