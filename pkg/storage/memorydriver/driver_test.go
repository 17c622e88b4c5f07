package memorydriver

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

const insertQuery = "INSERT INTO receipts (session_id, table_id, customer_name, total, lines, issued_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id"

func TestInsertAndListNewestFirst(t *testing.T) {
	db, cleanup, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS receipts (id BIGSERIAL PRIMARY KEY)"); err != nil {
		t.Fatalf("schema: %v", err)
	}

	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		var id int64
		if err := db.QueryRowContext(ctx, insertQuery, 100+i, i, "guest", "10.00", "[]", issued).Scan(&id); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if id != i {
			t.Fatalf("expected id %d, got %d", i, id)
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT id, session_id, table_id, customer_name, total, lines, issued_at FROM receipts ORDER BY id DESC")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var (
			id, sessionID, tableID int64
			name, total, lines     string
			at                     time.Time
		)
		if err := rows.Scan(&id, &sessionID, &tableID, &name, &total, &lines, &at); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if sessionID != 100+id || !at.Equal(issued) {
			t.Fatalf("unexpected row %d: session %d at %s", id, sessionID, at)
		}
		ids = append(ids, id)
	}
	if len(ids) != 3 || ids[0] != 3 || ids[2] != 1 {
		t.Fatalf("expected newest first, got %v", ids)
	}
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipts.json")
	ctx := context.Background()

	db, cleanup, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var id int64
	if err := db.QueryRowContext(ctx, insertQuery, 7, 2, "", "99.50", `[{"menu_item_id":1}]`, time.Now()).Scan(&id); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	db, cleanup, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer cleanup()

	var total string
	row := db.QueryRowContext(ctx, "SELECT id, session_id, table_id, customer_name, total, lines, issued_at FROM receipts WHERE id = $1", id)
	var (
		gotID, sessionID, tableID int64
		name, lines               string
		at                        time.Time
	)
	if err := row.Scan(&gotID, &sessionID, &tableID, &name, &total, &lines, &at); err != nil {
		t.Fatalf("lookup after reopen: %v", err)
	}
	if gotID != id || sessionID != 7 || total != "99.50" {
		t.Fatalf("unexpected record %d/%d/%s", gotID, sessionID, total)
	}

	if err := db.QueryRowContext(ctx, insertQuery, 8, 2, "", "1.00", "[]", time.Now()).Scan(&gotID); err != nil {
		t.Fatalf("insert after reopen: %v", err)
	}
	if gotID != id+1 {
		t.Fatalf("counter should continue from snapshot, got %d", gotID)
	}
}

func TestLookupBySessionReturnsLatest(t *testing.T) {
	db, cleanup, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, sessionID := range []int64{7, 8, 7} {
		var id int64
		if err := db.QueryRowContext(ctx, insertQuery, sessionID, 1, "", "5.00", "[]", issued).Scan(&id); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	query := "SELECT id, session_id, table_id, customer_name, total, lines, issued_at FROM receipts WHERE session_id = $1 ORDER BY id DESC LIMIT 1"
	var (
		id, sessionID, tableID int64
		name, total, lines     string
		at                     time.Time
	)
	if err := db.QueryRowContext(ctx, query, 7).Scan(&id, &sessionID, &tableID, &name, &total, &lines, &at); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != 3 || sessionID != 7 {
		t.Fatalf("expected latest receipt 3 for session 7, got %d/%d", id, sessionID)
	}
	if err := db.QueryRowContext(ctx, query, 99).Scan(&id, &sessionID, &tableID, &name, &total, &lines, &at); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUnsupportedQuery(t *testing.T) {
	db, cleanup, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cleanup()

	if _, err := db.ExecContext(context.Background(), "DROP TABLE receipts"); err == nil {
		t.Fatal("expected unsupported query error")
	}
}
