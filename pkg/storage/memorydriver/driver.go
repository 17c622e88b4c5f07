package memorydriver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// receiptRecord keeps the raw persisted representation of an archived receipt.
type receiptRecord struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"session_id"`
	TableID      int64     `json:"table_id"`
	CustomerName string    `json:"customer_name"`
	Total        string    `json:"total"`
	LinesJSON    string    `json:"lines"`
	IssuedAt     time.Time `json:"issued_at"`
}

// snapshot is written to disk after each mutation so the archive survives restarts.
type snapshot struct {
	Receipts       []receiptRecord `json:"receipts"`
	ReceiptCounter int64           `json:"receipt_counter"`
}

// storeCommand models every operation executed against the in-memory store.
type storeCommand struct {
	action  string
	receipt receiptRecord
	id      int64
	reply   chan storeResult
}

// storeResult transfers either the new identifier, a record list, or an error.
type storeResult struct {
	id       int64
	receipts []receiptRecord
	err      error
}

// store keeps the receipts guarded by a dedicated goroutine.
type store struct {
	commands        chan storeCommand
	closed          chan struct{}
	persistDone     chan struct{}
	persistRequests chan snapshot
	receipts        []receiptRecord
	receiptCounter  int64
	snapshotPath    string
	shutdownOnce    sync.Once
	shutdownErr     error
}

// newStore loads any previous snapshot and spins the goroutines so every access flows through a channel.
func newStore(path string) (*store, error) {
	loaded, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	s := &store{
		commands:        make(chan storeCommand, 32),
		closed:          make(chan struct{}),
		persistDone:     make(chan struct{}),
		persistRequests: make(chan snapshot, 1),
		snapshotPath:    path,
	}
	if loaded != nil {
		s.receipts = loaded.Receipts
		s.receiptCounter = loaded.ReceiptCounter
	}
	go s.loop()
	go s.persistenceLoop()
	return s, nil
}

// loop serializes every mutation and read request to keep the state safe without mutexes.
func (s *store) loop() {
	for cmd := range s.commands {
		switch cmd.action {
		case "insertReceipt":
			id := atomic.AddInt64(&s.receiptCounter, 1)
			cmd.receipt.ID = id
			if cmd.receipt.IssuedAt.IsZero() {
				cmd.receipt.IssuedAt = time.Now().UTC()
			}
			s.receipts = append(s.receipts, cmd.receipt)
			s.queuePersist()
			cmd.reply <- storeResult{id: id}
		case "listReceipts":
			cmd.reply <- storeResult{receipts: newestFirst(s.receipts)}
		case "getReceipt":
			var found []receiptRecord
			for _, rec := range s.receipts {
				if rec.ID == cmd.id {
					found = append(found, rec)
					break
				}
			}
			cmd.reply <- storeResult{receipts: found}
		case "getReceiptBySession":
			var found []receiptRecord
			for i := len(s.receipts) - 1; i >= 0; i-- {
				if s.receipts[i].SessionID == cmd.id {
					found = append(found, s.receipts[i])
					break
				}
			}
			cmd.reply <- storeResult{receipts: found}
		case "noop":
			cmd.reply <- storeResult{}
		case "shutdown":
			close(s.closed)
			<-s.persistDone
			var err error
			if s.snapshotPath != "" {
				err = writeSnapshot(s.snapshotPath, s.current())
			}
			cmd.reply <- storeResult{err: err}
			return
		default:
			cmd.reply <- storeResult{err: fmt.Errorf("unsupported action %s", cmd.action)}
		}
	}
}

// persistenceLoop writes snapshots asynchronously so the main loop stays responsive.
func (s *store) persistenceLoop() {
	defer close(s.persistDone)
	for {
		select {
		case snap := <-s.persistRequests:
			_ = writeSnapshot(s.snapshotPath, snap)
		case <-s.closed:
			return
		}
	}
}

// current copies the state into a snapshot; only the store goroutine calls it.
func (s *store) current() snapshot {
	return snapshot{
		Receipts:       cloneReceipts(s.receipts),
		ReceiptCounter: atomic.LoadInt64(&s.receiptCounter),
	}
}

// queuePersist hands the latest snapshot to the background writer, replacing any pending one.
func (s *store) queuePersist() {
	if s.snapshotPath == "" {
		return
	}
	snap := s.current()
	select {
	case s.persistRequests <- snap:
	default:
		select {
		case <-s.persistRequests:
		default:
		}
		s.persistRequests <- snap
	}
}

// shutdown flushes the final snapshot and stops the goroutines. Later calls return the first result.
func (s *store) shutdown() error {
	s.shutdownOnce.Do(func() {
		reply := make(chan storeResult, 1)
		s.commands <- storeCommand{action: "shutdown", reply: reply}
		s.shutdownErr = (<-reply).err
	})
	return s.shutdownErr
}

// connector hands database/sql connections that all share one store.
type connector struct {
	store *store
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{store: c.store}, nil
}

func (c *connector) Driver() driver.Driver { return &Driver{store: c.store} }

// Driver wires the store into the database/sql world.
type Driver struct {
	store *store
}

// Open creates a connection that forwards calls to the shared store.
func (d *Driver) Open(name string) (driver.Conn, error) {
	if d.store == nil {
		return nil, errors.New("memory driver store is not initialized")
	}
	return &conn{store: d.store}, nil
}

// conn represents a lightweight connection object; every operation still travels through channels.
type conn struct {
	store *store
}

// Prepare builds a statement object for the small set of supported queries.
func (c *conn) Prepare(query string) (driver.Stmt, error) {
	trimmed := strings.TrimSpace(strings.ToLower(query))
	switch {
	case strings.HasPrefix(trimmed, "insert into receipts"):
		return &stmt{store: c.store, query: "insertReceipt"}, nil
	case strings.HasPrefix(trimmed, "select") && strings.Contains(trimmed, "from receipts") && strings.Contains(trimmed, "where session_id"):
		return &stmt{store: c.store, query: "getReceiptBySession"}, nil
	case strings.HasPrefix(trimmed, "select") && strings.Contains(trimmed, "from receipts") && strings.Contains(trimmed, "where id"):
		return &stmt{store: c.store, query: "getReceipt"}, nil
	case strings.HasPrefix(trimmed, "select") && strings.Contains(trimmed, "from receipts"):
		return &stmt{store: c.store, query: "listReceipts"}, nil
	case strings.HasPrefix(trimmed, "create table"):
		return &stmt{store: c.store, query: "noop"}, nil
	default:
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
}

// Close is a no-op because the shared store owns the lifecycle.
func (c *conn) Close() error { return nil }

// Begin is not implemented because the archive operates without transactions.
func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions are not supported by the memory driver")
}

// stmt forwards Exec and Query to the store with the data shaped for each case.
type stmt struct {
	store *store
	query string
}

func (s *stmt) Close() error { return nil }

// NumInput returns -1 so database/sql accepts any argument count.
func (s *stmt) NumInput() int { return -1 }

// Exec handles schema bootstrap and inserts issued without RETURNING.
func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	switch s.query {
	case "noop":
		return execResult{}, nil
	case "insertReceipt":
		res, err := s.run(args)
		if err != nil {
			return nil, err
		}
		return execResult{id: res.id}, nil
	default:
		return nil, fmt.Errorf("unsupported exec action %s", s.query)
	}
}

// Query serves listings, single lookups and INSERT ... RETURNING id.
func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	res, err := s.run(args)
	if err != nil {
		return nil, err
	}
	switch s.query {
	case "insertReceipt":
		return &idRows{id: res.id}, nil
	case "listReceipts", "getReceipt", "getReceiptBySession":
		return &rows{receipts: res.receipts}, nil
	default:
		return nil, fmt.Errorf("unsupported query action %s", s.query)
	}
}

// run shapes the arguments into a store command and waits for the reply.
func (s *stmt) run(args []driver.Value) (storeResult, error) {
	cmd := storeCommand{action: s.query, reply: make(chan storeResult, 1)}

	switch s.query {
	case "insertReceipt":
		if len(args) < 6 {
			return storeResult{}, fmt.Errorf("expected 6 arguments, got %d", len(args))
		}
		issued, err := toTime(args[5])
		if err != nil {
			return storeResult{}, err
		}
		cmd.receipt = receiptRecord{
			SessionID:    toInt64(args[0]),
			TableID:      toInt64(args[1]),
			CustomerName: toString(args[2]),
			Total:        toString(args[3]),
			LinesJSON:    toString(args[4]),
			IssuedAt:     issued,
		}
	case "getReceipt", "getReceiptBySession":
		if len(args) < 1 {
			return storeResult{}, errors.New("expected id for lookup")
		}
		cmd.id = toInt64(args[0])
	}

	if err := s.enqueue(cmd); err != nil {
		return storeResult{}, err
	}
	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-s.store.closed:
		select {
		case res := <-cmd.reply:
			return res, res.err
		default:
			return storeResult{}, errors.New("memory store is closed")
		}
	}
}

// enqueue sends the command to the store while honoring a timeout to avoid blocking forever.
func (s *stmt) enqueue(cmd storeCommand) error {
	select {
	case <-s.store.closed:
		return errors.New("memory store is closed")
	default:
	}
	select {
	case s.store.commands <- cmd:
		return nil
	case <-s.store.closed:
		return errors.New("memory store is closed")
	case <-time.After(2 * time.Second):
		return errors.New("timed out while enqueuing command")
	}
}

// execResult fulfills the driver.Result interface with the generated identifier.
type execResult struct {
	id int64
}

func (r execResult) LastInsertId() (int64, error) { return r.id, nil }
func (r execResult) RowsAffected() (int64, error) {
	if r.id == 0 {
		return 0, nil
	}
	return 1, nil
}

// idRows answers RETURNING id with a single row.
type idRows struct {
	id   int64
	done bool
}

func (r *idRows) Columns() []string { return []string{"id"} }
func (r *idRows) Close() error      { return nil }
func (r *idRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.id
	return nil
}

// rows iterates through receipt records in the column order used by the repository.
type rows struct {
	receipts []receiptRecord
	index    int
}

func (r *rows) Columns() []string {
	return []string{"id", "session_id", "table_id", "customer_name", "total", "lines", "issued_at"}
}

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.index >= len(r.receipts) {
		return io.EOF
	}
	record := r.receipts[r.index]
	r.index++
	dest[0] = record.ID
	dest[1] = record.SessionID
	dest[2] = record.TableID
	dest[3] = record.CustomerName
	dest[4] = record.Total
	dest[5] = record.LinesJSON
	dest[6] = record.IssuedAt
	return nil
}

// toString converts driver.Value into a usable string.
func toString(value driver.Value) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toInt64 converts driver.Value to int64 when IDs are involved.
func toInt64(value driver.Value) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(math.Round(v))
	case string:
		if v == "" {
			return 0
		}
		var parsed int64
		fmt.Sscanf(v, "%d", &parsed)
		return parsed
	default:
		return 0
	}
}

// toTime handles the issued_at column conversions.
func toTime(value driver.Value) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	case []byte:
		return toTime(string(v))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, errors.New("unsupported time format")
	}
}

// Open returns a database handle backed by an in-memory store. When path is set the store
// is loaded from and persisted to that JSON file. The cleanup function flushes the final
// snapshot and must be called once the handle is no longer used.
func Open(path string) (*sql.DB, func() error, error) {
	st, err := newStore(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	db := sql.OpenDB(&connector{store: st})
	cleanup := func() error {
		return errors.Join(db.Close(), st.shutdown())
	}
	return db, cleanup, nil
}

// readSnapshot loads the persisted JSON file if it exists.
func readSnapshot(path string) (*snapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// writeSnapshot persists the state to disk via a temp file and rename.
func writeSnapshot(path string, snap snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(temp, path)
}

func cloneReceipts(src []receiptRecord) []receiptRecord {
	out := make([]receiptRecord, len(src))
	copy(out, src)
	return out
}

// newestFirst mirrors ORDER BY id DESC.
func newestFirst(src []receiptRecord) []receiptRecord {
	out := make([]receiptRecord, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out
}
