package receipts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bistro/pkg/bill"
	"bistro/pkg/storage/memorydriver"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, cleanup, err := memorydriver.Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	svc := NewService(NewRepository(db))
	t.Cleanup(func() {
		svc.Close()
		cleanup()
	})
	return svc
}

func TestSaveGetList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))

	first, err := svc.Save(ctx, Record{
		SessionID:    12,
		TableID:      3,
		CustomerName: "Asha",
		Total:        decimal.RequireFromString("150.50"),
		Lines: []bill.LineItem{
			{MenuItemID: 5, Name: "Momo", Quantity: 3, LineTotal: decimal.RequireFromString("150.50"), PriceAtTime: decimal.RequireFromString("50.1666")},
		},
		IssuedAt: issued,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected generated id")
	}
	second, err := svc.Save(ctx, Record{SessionID: 13, TableID: 1, Total: decimal.Zero, IssuedAt: issued})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := svc.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionID != 12 || got.CustomerName != "Asha" || !got.Total.Equal(decimal.RequireFromString("150.5")) {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.IssuedAt.Equal(issued) || got.IssuedAt.Location() != time.UTC {
		t.Fatalf("issued_at should round-trip in UTC, got %s", got.IssuedAt)
	}
	if len(got.Lines) != 1 || got.Lines[0].Name != "Momo" || got.Lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines %+v", got.Lines)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}
}

func TestGetUnknownReceipt(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Get(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBySession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, sessionID := range []int64{12, 13} {
		if _, err := svc.Save(ctx, Record{SessionID: sessionID, TableID: 3, Total: decimal.NewFromInt(10), IssuedAt: issued}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := svc.GetBySession(ctx, 13)
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if got.SessionID != 13 || got.ID != 2 {
		t.Fatalf("unexpected record %+v", got)
	}
	if _, err := svc.GetBySession(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAfterCallerCancelledReportsContextError(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Save(ctx, Record{SessionID: 1, Total: decimal.Zero, IssuedAt: time.Now()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// either select branch may win; a cancelled call must never hang
	done := make(chan struct{})
	go func() {
		svc.List(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("List did not return for a cancelled context")
	}
}
