// Package ledger records accounts and the money that moves through them:
// transactions, transfers, tags, categories and imports. Every balance change
// is written in the same database transaction as the row that causes it.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/advisor"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// TextParser reads free text such as "coffee $5" into a transaction.
type TextParser interface {
	Parse(ctx context.Context, text string, categories []string) advisor.ParsedTransaction
}

// Service is the ledger's entry point.
type Service struct {
	storage service.Storage
	parser  TextParser
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a ledger service. Free-text logging uses the offline
// parser until WithParser supplies a better one.
func NewService(storage service.Storage) *Service {
	return &Service{
		storage: storage,
		parser:  advisor.NewParser(nil),
		now:     time.Now,
		logger:  slog.Default().With("component", "ledger"),
	}
}

// WithClock replaces the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithParser sets the free-text parser.
func (s *Service) WithParser(p TextParser) *Service {
	s.parser = p
	return s
}

func (s *Service) today() time.Time {
	return model.Day(s.now())
}

func (s *Service) inTx(ctx context.Context, fn func(service.Store) error) error {
	return service.RunInTx(ctx, s.storage, fn)
}
