package receipts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Repository persists receipts through database/sql. Statements use $n placeholders and
// RETURNING so they run unchanged on PostgreSQL and on the bundled memory driver.
type Repository struct {
	db *sql.DB
}

// NewRepository wires the database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the receipts table when it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS receipts (
                        id BIGSERIAL PRIMARY KEY,
                        session_id BIGINT NOT NULL,
                        table_id BIGINT NOT NULL,
                        customer_name TEXT NOT NULL DEFAULT '',
                        total NUMERIC(12, 2) NOT NULL,
                        lines TEXT NOT NULL,
                        issued_at TIMESTAMPTZ NOT NULL
                )`)
	return err
}

// Save inserts the receipt and returns it with its generated identifier.
func (r *Repository) Save(ctx context.Context, rec Record) (Record, error) {
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return Record{}, err
	}
	rec.IssuedAt = rec.IssuedAt.UTC()

	query := "INSERT INTO receipts (session_id, table_id, customer_name, total, lines, issued_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id"
	row := r.db.QueryRowContext(ctx, query, rec.SessionID, rec.TableID, rec.CustomerName, rec.Total.String(), string(lines), rec.IssuedAt)
	if err := row.Scan(&rec.ID); err != nil {
		return Record{}, fmt.Errorf("insert receipt for session %d: %w", rec.SessionID, err)
	}
	return rec, nil
}

// List returns every archived receipt, newest first.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	query := "SELECT id, session_id, table_id, customer_name, total, lines, issued_at FROM receipts ORDER BY id DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Get loads a single receipt.
func (r *Repository) Get(ctx context.Context, id int64) (Record, error) {
	query := "SELECT id, session_id, table_id, customer_name, total, lines, issued_at FROM receipts WHERE id = $1"
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// GetBySession loads the latest receipt issued for a table session.
func (r *Repository) GetBySession(ctx context.Context, sessionID int64) (Record, error) {
	query := "SELECT id, session_id, table_id, customer_name, total, lines, issued_at FROM receipts WHERE session_id = $1 ORDER BY id DESC LIMIT 1"
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec      Record
		total    string
		lines    string
		issuedAt time.Time
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.TableID, &rec.CustomerName, &total, &lines, &issuedAt); err != nil {
		return Record{}, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return Record{}, fmt.Errorf("receipt %d has invalid total %q: %w", rec.ID, total, err)
	}
	rec.Total = amount
	if err := json.Unmarshal([]byte(lines), &rec.Lines); err != nil {
		return Record{}, fmt.Errorf("receipt %d has invalid lines: %w", rec.ID, err)
	}
	rec.IssuedAt = issuedAt.UTC()
	return rec, nil
}
