// Package checkout builds bills, closes sessions and prepares the floor and history views.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bistro/pkg/bill"
	"bistro/pkg/format"
	"bistro/pkg/logging"
	"bistro/pkg/receipts"
	"bistro/pkg/session"
)

// ErrAlreadyClosed is returned when checkout is attempted on a finished session.
var ErrAlreadyClosed = errors.New("table session is already closed")

// API is the part of the restaurant API the checkout needs.
type API interface {
	GetSession(ctx context.Context, id int64) (session.Session, error)
	ListMenuItems(ctx context.Context) ([]session.MenuItem, error)
	CloseSession(ctx context.Context, id int64) error
	ListTables(ctx context.Context) ([]session.Table, error)
	ListHistory(ctx context.Context, page, pageSize int) (session.HistoryPage, error)
}

// Archive stores issued receipts.
type Archive interface {
	Save(ctx context.Context, rec receipts.Record) (receipts.Record, error)
	GetBySession(ctx context.Context, sessionID int64) (receipts.Record, error)
}

// Publisher announces issued receipts.
type Publisher interface {
	PublishReceipt(ctx context.Context, rec receipts.Record) error
}

// Service holds no per-session state; every call works on a freshly fetched snapshot.
type Service struct {
	api     API
	archive Archive
	events  Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the collaborators. A nil logger discards output.
func NewService(api API, archive Archive, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		api:     api,
		archive: archive,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// Bill returns the printable receipt for a session, open or closed.
func (s *Service) Bill(ctx context.Context, sessionID int64) (bill.Receipt, error) {
	snap, names, err := s.load(ctx, sessionID)
	if err != nil {
		return bill.Receipt{}, err
	}
	receipt := bill.BuildReceipt(snap, names, s.now())
	if !receipt.Consistent {
		logging.FromContext(ctx, s.logger).Warn("bill totals disagree",
			"action", "bill", "session_id", sessionID, "mismatch", receipt.Mismatch)
	}
	return receipt, nil
}

// Close finalizes checkout: the remote session is closed, the receipt stamped with
// the closing time is archived and a receipt.issued event is published. A session
// that is already closed but has no archived receipt gets its receipt issued now,
// stamped with the server's ended_at, so a failed archive step can be retried.
func (s *Service) Close(ctx context.Context, sessionID int64) (receipts.Record, error) {
	log := logging.FromContext(ctx, s.logger).With("action", "close", "session_id", sessionID)

	snap, names, err := s.load(ctx, sessionID)
	if err != nil {
		return receipts.Record{}, err
	}

	if snap.IsClosed() {
		existing, err := s.archive.GetBySession(ctx, sessionID)
		switch {
		case err == nil:
			return receipts.Record{}, fmt.Errorf("session %d has receipt %d: %w", sessionID, existing.ID, ErrAlreadyClosed)
		case !errors.Is(err, receipts.ErrNotFound):
			return receipts.Record{}, fmt.Errorf("look up receipt for session %d: %w", sessionID, err)
		}
		closedAt, err := format.ParseTimestamp(*snap.EndedAt)
		if err != nil {
			log.Warn("unparseable ended_at, stamping receipt with current time", "ended_at", *snap.EndedAt, "error", err)
			closedAt = s.now()
		}
		log.Warn("closed session has no receipt, archiving it now")
		return s.issue(ctx, log, snap, names, closedAt.UTC())
	}

	if err := s.api.CloseSession(ctx, sessionID); err != nil {
		return receipts.Record{}, fmt.Errorf("close session %d: %w", sessionID, err)
	}
	closedAt := s.now().UTC()
	stamp := closedAt.Format(time.RFC3339)
	snap.EndedAt = &stamp
	return s.issue(ctx, log, snap, names, closedAt)
}

// issue archives the receipt of a closed session and announces it.
func (s *Service) issue(ctx context.Context, log *slog.Logger, snap session.Session, names bill.NameLookup, closedAt time.Time) (receipts.Record, error) {
	receipt := bill.BuildReceipt(snap, names, closedAt)
	if !receipt.Consistent {
		log.Warn("closing session with inconsistent totals", "mismatch", receipt.Mismatch)
	}

	stored, err := s.archive.Save(ctx, receipts.Record{
		SessionID:    snap.ID,
		TableID:      snap.TableID,
		CustomerName: snap.Guest(),
		Total:        snap.TotalBill,
		Lines:        receipt.Items(),
		IssuedAt:     closedAt,
	})
	if err != nil {
		return receipts.Record{}, fmt.Errorf("archive receipt for session %d: %w", snap.ID, err)
	}

	if err := s.events.PublishReceipt(ctx, stored); err != nil {
		log.Error("receipt event not published", "receipt_id", stored.ID, "error", err)
	}
	log.Info("session closed", "receipt_id", stored.ID, "table_id", stored.TableID, "total", stored.Total.StringFixed(2))
	return stored, nil
}

// load fetches the session and the menu concurrently. The menu is optional: without
// it every line falls back to "Item #<id>".
func (s *Service) load(ctx context.Context, sessionID int64) (session.Session, bill.NameLookup, error) {
	var (
		snap session.Session
		menu []session.MenuItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = s.api.GetSession(gctx, sessionID)
		if err != nil {
			return fmt.Errorf("load session %d: %w", sessionID, err)
		}
		return nil
	})
	g.Go(func() error {
		items, err := s.api.ListMenuItems(gctx)
		if err != nil {
			if gctx.Err() == nil {
				logging.FromContext(ctx, s.logger).Warn("menu unavailable, printing fallback names",
					"action", "load_menu", "session_id", sessionID, "error", err)
			}
			return nil
		}
		menu = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return session.Session{}, nil, err
	}
	return snap, bill.CatalogLookup(menu), nil
}
