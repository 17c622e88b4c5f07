package checkout

import (
	"context"
	"fmt"
	"time"

	"bistro/pkg/format"
	"bistro/pkg/pagination"
)

const (
	DefaultPageSize = 5
	MaxPageSize     = 100
)

// TableCard is one tile on the floor dashboard.
type TableCard struct {
	ID        int64  `json:"id"`
	Number    int    `json:"number"`
	Occupied  bool   `json:"occupied"`
	SessionID *int64 `json:"session_id,omitempty"`
	Guest     string `json:"guest,omitempty"`
	Arrival   string `json:"arrival,omitempty"`
	Elapsed   string `json:"elapsed,omitempty"`
}

// HistoryRow is a closed session formatted for the history table.
type HistoryRow struct {
	ID        int64  `json:"id"`
	TableID   int64  `json:"table_id"`
	Guest     string `json:"guest,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  string `json:"duration"`
	FinalBill string `json:"final_bill"`
}

// HistoryView is one page of history plus the page selector.
type HistoryView struct {
	Items      []HistoryRow      `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	Window     []pagination.Link `json:"window"`
}

// Tables lists the floor with an elapsed-time badge on occupied tables.
func (s *Service) Tables(ctx context.Context, now time.Time) ([]TableCard, error) {
	tables, err := s.api.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	cards := make([]TableCard, 0, len(tables))
	for _, t := range tables {
		card := TableCard{
			ID:        t.ID,
			Number:    t.Number,
			Occupied:  t.IsOccupied,
			SessionID: t.ActiveSessionID,
		}
		if t.CustomerName != nil {
			card.Guest = *t.CustomerName
		}
		if t.IsOccupied && t.CustomerArrival != nil {
			card.Arrival = format.ReceiptTime(*t.CustomerArrival)
			if arrived, err := format.ParseTimestamp(*t.CustomerArrival); err == nil {
				card.Elapsed = format.Elapsed(arrived, now)
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// History returns one formatted page of closed sessions.
func (s *Service) History(ctx context.Context, page, pageSize int) (HistoryView, error) {
	page, pageSize = normalizePage(page, pageSize)

	result, err := s.api.ListHistory(ctx, page, pageSize)
	if err != nil {
		return HistoryView{}, fmt.Errorf("load history page %d: %w", page, err)
	}

	totalPages := result.TotalPages
	if totalPages == 0 {
		totalPages = pagination.TotalPages(result.Total, pageSize)
	}

	rows := make([]HistoryRow, 0, len(result.Items))
	for _, entry := range result.Items {
		row := HistoryRow{
			ID:        entry.ID,
			TableID:   entry.TableID,
			Date:      format.ReceiptDate(entry.StartedAt),
			StartTime: format.ReceiptTime(entry.StartedAt),
			EndTime:   format.ReceiptTime(entry.EndedAt),
			Duration:  format.DurationBetween(entry.StartedAt, entry.EndedAt),
			FinalBill: format.Money(entry.FinalBill),
		}
		if entry.CustomerName != nil {
			row.Guest = *entry.CustomerName
		}
		rows = append(rows, row)
	}

	return HistoryView{
		Items:      rows,
		Total:      result.Total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Window:     pagination.Window(page, totalPages),
	}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
