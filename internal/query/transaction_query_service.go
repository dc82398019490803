package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/vay-dev/swift-wallet-be/internal/repository"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/events"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type TransactionReader interface {
	GetByReference(ctx context.Context, userID, reference string) (*models.TransactionView, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]*models.TransactionView, int, error)
}

// ViewRefresher reloads the cached view of a transaction from the store.
type ViewRefresher interface {
	Refresh(ctx context.Context, reference string) error
}

// TransactionQueryService serves transaction reads. Lookups are always scoped
// to the caller, so another user's reference reads as not found.
type TransactionQueryService struct {
	reader    TransactionReader
	refresher ViewRefresher
	logger    *zap.Logger
}

func NewTransactionQueryService(reader TransactionReader, refresher ViewRefresher, logger *zap.Logger) *TransactionQueryService {
	return &TransactionQueryService{reader: reader, refresher: refresher, logger: logger}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	reference := strings.TrimSpace(q.Reference)
	if reference == "" {
		return nil, models.NewValidationError("reference", "reference is required")
	}
	return s.reader.GetByReference(ctx, q.UserID, reference)
}

// ListTransactions pages through the caller's history, newest first.
func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
	if q.Direction != "" && !q.Direction.Valid() {
		return nil, models.NewValidationError("type", "type must be credit or debit")
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown status %q", q.Status)
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return nil, models.NewValidationError("end_date", "end_date must not be before start_date")
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}

	views, total, err := s.reader.List(ctx, repository.TransactionFilter{
		UserID:    q.UserID,
		Direction: q.Direction,
		Status:    q.Status,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Limit:     size,
		Offset:    (page - 1) * size,
	})
	if err != nil {
		return nil, err
	}

	return &models.TransactionPage{
		Transactions: views,
		Page:         page,
		PageSize:     size,
		Total:        total,
	}, nil
}

// HandleWalletEvent keeps the transaction view cache in step with the ledger.
// It is registered as the handler of the wallet events subscriber.
func (s *TransactionQueryService) HandleWalletEvent(ctx context.Context, event events.Event) error {
	var reference string
	switch event.Type {
	case events.TransactionCompleted:
		var data events.TransactionCompletedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		reference = data.Reference
	case events.TransactionFailed:
		var data events.TransactionFailedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		reference = data.Reference
	default:
		return nil
	}

	if reference == "" {
		return fmt.Errorf("%s event without a reference", event.Type)
	}
	if err := s.refresher.Refresh(ctx, reference); err != nil {
		return fmt.Errorf("failed to refresh view for %s: %w", reference, err)
	}
	s.logger.Debug("transaction view refreshed", zap.String("reference", reference), zap.String("event", event.Type))
	return nil
}
