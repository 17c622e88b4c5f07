package httpapi

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"text/template"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"bistro/pkg/bill"
	"bistro/pkg/checkout"
	"bistro/pkg/logging"
	"bistro/pkg/posapi"
	"bistro/pkg/receipts"
)

//go:embed templates/receipt.gotmpl
var templateFS embed.FS

// ShopName heads every printed receipt.
const ShopName = "BISTRO"

const requestIDHeader = "X-Request-ID"

// Checkout is the checkout behaviour the handlers depend on.
type Checkout interface {
	Bill(ctx context.Context, sessionID int64) (bill.Receipt, error)
	Close(ctx context.Context, sessionID int64) (receipts.Record, error)
	Tables(ctx context.Context, now time.Time) ([]checkout.TableCard, error)
	History(ctx context.Context, page, pageSize int) (checkout.HistoryView, error)
}

// Archive exposes issued receipts read-only.
type Archive interface {
	List(ctx context.Context) ([]receipts.Record, error)
	Get(ctx context.Context, id int64) (receipts.Record, error)
}

// Server wires HTTP endpoints to the checkout service and the receipt archive.
type Server struct {
	checkout Checkout
	archive  Archive
	receipt  *template.Template
	logger   *slog.Logger
	now      func() time.Time
}

// New parses the receipt template once.
func New(co Checkout, archive Archive, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/receipt.gotmpl")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		checkout: co,
		archive:  archive,
		receipt:  tmpl,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/checkout/{id}", s.printReceipt)
	r.Route("/api", func(r chi.Router) {
		r.Get("/checkout/{id}", s.getBill)
		r.Post("/checkout/{id}/close", s.closeSession)
		r.Get("/tables", s.listTables)
		r.Get("/history", s.listHistory)
		r.Get("/receipts", s.listReceipts)
		r.Get("/receipts/{id}", s.getReceipt)
	})
	return r
}

// requestID reuses the caller's X-Request-ID or mints one, and puts it on the context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) getBill(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "bill")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	receipt, err := s.checkout.Bill(ctx, id)
	if err != nil {
		s.fail(w, r, "bill", err)
		return
	}
	s.respondJSON(w, http.StatusOK, receipt)
}

// printReceipt renders the customer copy as plain text for the thermal printer.
func (s *Server) printReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "print")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	receipt, err := s.checkout.Bill(ctx, id)
	if err != nil {
		s.fail(w, r, "print", err)
		return
	}
	data := struct {
		Shop    string
		Receipt bill.Receipt
	}{Shop: ShopName, Receipt: receipt}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.receipt.ExecuteTemplate(w, "receipt", data); err != nil {
		logging.FromContext(r.Context(), s.logger).Error("receipt render failed", "action", "print", "error", err)
	}
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "close")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stored, err := s.checkout.Close(ctx, id)
	if err != nil {
		s.fail(w, r, "close", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stored)
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cards, err := s.checkout.Tables(ctx, s.now())
	if err != nil {
		s.fail(w, r, "tables", err)
		return
	}
	s.respondJSON(w, http.StatusOK, cards)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		s.respondError(w, "invalid page", http.StatusBadRequest)
		return
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		s.respondError(w, "invalid page_size", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := s.checkout.History(ctx, page, pageSize)
	if err != nil {
		s.fail(w, r, "history", err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) listReceipts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	records, err := s.archive.List(ctx)
	if err != nil {
		s.fail(w, r, "list_receipts", err)
		return
	}
	s.respondJSON(w, http.StatusOK, records)
}

func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "get_receipt")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	record, err := s.archive.Get(ctx, id)
	if err != nil {
		s.fail(w, r, "get_receipt", err)
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

// pathID parses the {id} path parameter and answers 400 when it is not a positive integer.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, action string) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		logging.FromContext(r.Context(), s.logger).Info("request rejected: invalid id", "action", action, "id", raw)
		s.respondError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// fail logs the error and maps it onto a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "action", action, "status", status, "error", err)
	} else {
		log.Info("request rejected", "action", action, "status", status, "error", err)
	}
	s.respondError(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, posapi.ErrNotFound), errors.Is(err, receipts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrAlreadyClosed):
		return http.StatusConflict
	case errors.Is(err, posapi.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

// respondError keeps JSON formatting consistent across endpoints.
func (s *Server) respondError(w http.ResponseWriter, message string, status int) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
