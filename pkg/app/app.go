package app

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bistro/pkg/broker"
	"bistro/pkg/checkout"
	"bistro/pkg/httpapi"
	"bistro/pkg/logging"
	"bistro/pkg/posapi"
	"bistro/pkg/receipts"
	"bistro/pkg/storage/memorydriver"
	"bistro/pkg/version"
)

// Run composes the receipt archive, the restaurant API client, the event publisher and
// the HTTP server, and serves until ctx is cancelled.
func Run(ctx context.Context, args []string, logger *slog.Logger) error {
	cfg, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if logger == nil {
		logger = logging.New("bistro", os.Stdout, parseLevel(cfg.LogLevel))
	}

	if cfg.ShowVersion {
		logger.Info("bistro version", "version", version.Version())
		return nil
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	db, closeDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.Error("database close failed", "error", err)
		}
	}()

	if err := receipts.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("unable to ensure schema: %w", err)
	}

	archive := receipts.NewService(receipts.NewRepository(db))
	defer archive.Close()

	events, closeEvents, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	api := posapi.NewClient(cfg.APIURL, cfg.APIToken, cfg.APITimeout)
	checkoutService := checkout.NewService(api, archive, events, logger)

	srv, err := httpapi.New(checkoutService, archive, logger)
	if err != nil {
		return fmt.Errorf("unable to build http server: %w", err)
	}

	addr := cfg.address()
	server := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", addr, err)
	}

	logger.Info("bistro checkout is running", "addr", addr, "db_type", cfg.DBType, "api_url", cfg.APIURL)
	if err := serve(ctx, server, ln, logger); err != nil {
		return err
	}
	logger.Info("bistro checkout stopped")
	return nil
}

// serve runs the listener until ctx is cancelled and returns only after in-flight
// requests have drained, so the archive and database outlive every handler.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	}
	<-drained
	return nil
}

// openDatabase returns the receipt archive handle and its cleanup.
func openDatabase(cfg Config) (*sql.DB, func() error, error) {
	switch cfg.DBType {
	case "pgx":
		db, err := sql.Open("pgx", cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open database: %w", err)
		}
		return db, db.Close, nil
	case "memory":
		db, cleanup, err := memorydriver.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open memory store: %w", err)
		}
		return db, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unsupported db type %q", cfg.DBType)
	}
}

// openPublisher dials RabbitMQ when configured and falls back to a no-op publisher otherwise.
func openPublisher(cfg Config, logger *slog.Logger) (checkout.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Info("receipt events disabled, no -amqp-url given")
		return broker.Nop{}, func() {}, nil
	}
	pub, err := broker.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to broker: %w", err)
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Error("broker close failed", "error", err)
		}
	}, nil
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}
