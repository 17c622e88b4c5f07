package receipts

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bistro/pkg/bill"
)

// ErrNotFound is returned when a receipt id is unknown so HTTP handlers can respond with 404.
var ErrNotFound = errors.New("receipt not found")

// Record is an issued receipt kept after the session has been closed.
type Record struct {
	ID           int64           `json:"id"`
	SessionID    int64           `json:"session_id"`
	TableID      int64           `json:"table_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Lines        []bill.LineItem `json:"lines"`
	IssuedAt     time.Time       `json:"issued_at"`
}
