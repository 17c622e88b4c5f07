package posapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const sessionJSON = `{
  "id": 12,
  "table_id": 3,
  "customer_name": "Asha",
  "total_bill": 150.5,
  "started_at": "2024-01-01T10:00:00",
  "ended_at": null,
  "orders": [
    {"id": 1, "total_amount": 150.5, "created_at": "2024-01-01T10:05:00", "status": "served",
     "items": [{"id": 7, "menu_item_id": 5, "quantity": 2, "price_at_time": 75.25, "note": null, "line_total": 150.5}]}
  ]
}`

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/table-sessions/12" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sessionJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second)
	s, err := c.GetSession(context.Background(), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != 12 || s.TableID != 3 || s.Guest() != "Asha" || s.IsClosed() {
		t.Fatalf("unexpected session %+v", s)
	}
	if len(s.Orders) != 1 || len(s.Orders[0].Items) != 1 {
		t.Fatalf("unexpected orders %+v", s.Orders)
	}
	it := s.Orders[0].Items[0]
	if it.MenuItemID != 5 || it.Quantity != 2 || it.LineTotal.String() != "150.5" || it.Note != "" {
		t.Fatalf("unexpected item %+v", it)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/table-sessions/404":
			http.Error(w, `{"detail":"table not found"}`, http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.GetSession(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.ListMenuItems(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, "", time.Second)
	if err := c.CloseSession(context.Background(), 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCloseAndHistory(t *testing.T) {
	var closed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/table-sessions/9/close":
			closed.Store(true)
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/table-sessions/history/paginated":
			if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("page_size") != "5" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"items":[{"id":4,"table_id":2,"customer_name":null,"final_bill":"99.90","started_at":"2024-01-01T10:00:00Z","ended_at":"2024-01-01T11:00:00Z"}],"total":6,"page":2,"page_size":5,"total_pages":2}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if err := c.CloseSession(context.Background(), 9); err != nil || !closed.Load() {
		t.Fatalf("close failed: %v (closed=%v)", err, closed.Load())
	}
	page, err := c.ListHistory(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 6 || page.TotalPages != 2 || len(page.Items) != 1 || page.Items[0].FinalBill.StringFixed(2) != "99.90" {
		t.Fatalf("unexpected page %+v", page)
	}
}
