package session

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks whether the kitchen has served an order yet.
type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusServed  OrderStatus = "served"
)

// OrderItem is one menu item placed within an order, priced when the order was taken.
type OrderItem struct {
	ID          int64           `json:"id"`
	MenuItemID  int64           `json:"menu_item_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	Note        string          `json:"note"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Order is one batch of items sent to the kitchen; TotalAmount is cached by the API, not recomputed here.
type Order struct {
	ID          int64           `json:"id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   string          `json:"created_at"`
	Status      OrderStatus     `json:"status"`
}

// Session is a single customer visit to a table, from seating to checkout.
// Timestamps stay as the raw ISO-8601 strings returned by the API.
type Session struct {
	ID           int64           `json:"id"`
	TableID      int64           `json:"table_id"`
	CustomerName *string         `json:"customer_name"`
	TotalBill    decimal.Decimal `json:"total_bill"`
	Orders       []Order         `json:"orders"`
	StartedAt    string          `json:"started_at"`
	EndedAt      *string         `json:"ended_at"`
}

// IsClosed reports whether checkout already happened.
func (s Session) IsClosed() bool {
	return s.EndedAt != nil && strings.TrimSpace(*s.EndedAt) != ""
}

// Guest returns the customer name or an empty string for walk-ins.
func (s Session) Guest() string {
	if s.CustomerName == nil {
		return ""
	}
	return strings.TrimSpace(*s.CustomerName)
}

// MenuItem is a catalog entry; the checkout only needs it for id to name resolution.
type MenuItem struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	CategoryID    int64           `json:"category_id"`
	SubCategoryID *int64          `json:"sub_category_id"`
	DisplayOrder  int             `json:"display_order"`
	IsAvailable   bool            `json:"is_available"`
}

// Table is a dining table as listed on the floor dashboard.
type Table struct {
	ID              int64   `json:"id"`
	Number          int     `json:"number"`
	IsOccupied      bool    `json:"is_occupied"`
	ActiveSessionID *int64  `json:"active_session_id"`
	CustomerName    *string `json:"customer_name"`
	CustomerArrival *string `json:"customer_arrival"`
}

// HistoryEntry summarizes a closed session.
type HistoryEntry struct {
	ID           int64           `json:"id"`
	TableID      int64           `json:"table_id"`
	CustomerName *string         `json:"customer_name"`
	FinalBill    decimal.Decimal `json:"final_bill"`
	StartedAt    string          `json:"started_at"`
	EndedAt      string          `json:"ended_at"`
}

// HistoryPage is one page of closed sessions.
type HistoryPage struct {
	Items      []HistoryEntry `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}
