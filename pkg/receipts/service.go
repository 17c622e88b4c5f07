package receipts

import (
	"context"
	"errors"
	"time"
)

// command carries one archive operation to the service goroutine.
type command struct {
	ctx    context.Context
	action string
	record Record
	id     int64
	reply  chan commandResult
}

type commandResult struct {
	record  Record
	records []Record
	err     error
}

// Service serializes archive access through a single goroutine.
type Service struct {
	repo     *Repository
	commands chan command
	quit     chan struct{}
	timeout  time.Duration
}

// NewService starts the background goroutine immediately.
func NewService(repo *Repository) *Service {
	svc := &Service{
		repo:     repo,
		commands: make(chan command),
		quit:     make(chan struct{}),
		timeout:  2 * time.Second,
	}
	go svc.loop()
	return svc
}

func (s *Service) loop() {
	for {
		select {
		case cmd := <-s.commands:
			switch cmd.action {
			case "save":
				stored, err := s.repo.Save(cmd.ctx, cmd.record)
				cmd.reply <- commandResult{record: stored, err: err}
			case "list":
				records, err := s.repo.List(cmd.ctx)
				cmd.reply <- commandResult{records: records, err: err}
			case "get":
				record, err := s.repo.Get(cmd.ctx, cmd.id)
				cmd.reply <- commandResult{record: record, err: err}
			case "get_by_session":
				record, err := s.repo.GetBySession(cmd.ctx, cmd.id)
				cmd.reply <- commandResult{record: record, err: err}
			default:
				cmd.reply <- commandResult{err: errors.New("unknown receipt action")}
			}
		case <-s.quit:
			return
		}
	}
}

// Save archives an issued receipt and returns it with its identifier.
func (s *Service) Save(ctx context.Context, rec Record) (Record, error) {
	res, err := s.dispatch(ctx, command{action: "save", record: rec})
	return res.record, err
}

// List returns all archived receipts, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	res, err := s.dispatch(ctx, command{action: "list"})
	return res.records, err
}

// Get returns one receipt or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	res, err := s.dispatch(ctx, command{action: "get", id: id})
	return res.record, err
}

// GetBySession returns the receipt issued for a session or ErrNotFound.
func (s *Service) GetBySession(ctx context.Context, sessionID int64) (Record, error) {
	res, err := s.dispatch(ctx, command{action: "get_by_session", id: sessionID})
	return res.record, err
}

// Close stops the goroutine. Callers must have finished using the service.
func (s *Service) Close() {
	close(s.quit)
}

// dispatch bounds only the hand-off to the loop. An accepted command runs under the
// caller's context and its result is always delivered.
func (s *Service) dispatch(ctx context.Context, cmd command) (commandResult, error) {
	cmd.ctx = ctx
	// buffered: the loop must not block on a caller that already returned
	cmd.reply = make(chan commandResult, 1)

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	case <-time.After(s.timeout):
		return commandResult{}, errors.New("receipt archive is busy")
	}

	res := <-cmd.reply
	return res, res.err
}
