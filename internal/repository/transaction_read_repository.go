package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	sharedredis "github.com/vay-dev/swift-wallet-be/shared/redis"
	"go.uber.org/zap"
)

const transactionViewKeyPrefix = "transaction:view:"

// TransactionFilter narrows a history listing. Zero values are ignored.
type TransactionFilter struct {
	UserID    string
	Direction models.Direction
	Status    models.Status
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// TransactionReadRepository handles all read operations for transactions.
// Single lookups use Redis first and fall back to PostgreSQL; only terminal
// transactions are cached since their contents no longer change.
type TransactionReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.TransactionView]
}

func NewTransactionReadRepository(db *sql.DB, redisClient *goredis.Client, ttl time.Duration, logger *zap.Logger) *TransactionReadRepository {
	return &TransactionReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.TransactionView](redisClient, ttl, logger),
	}
}

func transactionViewKey(userID, reference string) string {
	return fmt.Sprintf("%s%s:%s", transactionViewKeyPrefix, userID, reference)
}

// GetByReference returns the caller's transaction view, attempting Redis first.
func (r *TransactionReadRepository) GetByReference(ctx context.Context, userID, reference string) (*models.TransactionView, error) {
	return r.cache.GetOrLoad(ctx, transactionViewKey(userID, reference), func(ctx context.Context) (*models.TransactionView, error) {
		query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 AND user_id = $2`
		t, err := scanTransaction(r.db.QueryRowContext(ctx, query, reference, userID))
		if err != nil {
			return nil, err
		}
		return models.NewTransactionView(t), nil
	}, isTerminalView)
}

// List returns a page of the user's transactions, newest first, along with
// the total number of matching rows.
func (r *TransactionReadRepository) List(ctx context.Context, f TransactionFilter) ([]*models.TransactionView, int, error) {
	where, args := buildTransactionFilter(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM transactions WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)-1, len(args))

	views, err := r.queryViews(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// ListRecent returns the user's n most recent transactions.
func (r *TransactionReadRepository) ListRecent(ctx context.Context, userID string, n int) ([]*models.TransactionView, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	return r.queryViews(ctx, query, userID, n)
}

func (r *TransactionReadRepository) queryViews(ctx context.Context, query string, args ...any) ([]*models.TransactionView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	views := make([]*models.TransactionView, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, models.NewTransactionView(t))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return views, nil
}

func buildTransactionFilter(f TransactionFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{f.UserID}

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Direction != "" {
		add("direction = $%d", string(f.Direction))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at < $%d", *f.EndDate)
	}
	return strings.Join(clauses, " AND "), args
}

func isTerminalView(v *models.TransactionView) bool {
	return v.Status.IsTerminal()
}

// cacheView writes a terminal view to Redis and evicts anything
// still pending.
func (r *TransactionReadRepository) cacheView(ctx context.Context, view *models.TransactionView) {
	r.cache.Put(ctx, transactionViewKey(view.UserID, view.Reference), view, isTerminalView)
}

// Refresh reloads a transaction from PostgreSQL and updates its cached view.
func (r *TransactionReadRepository) Refresh(ctx context.Context, reference string) error {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, reference))
	if err != nil {
		return err
	}
	r.cacheView(ctx, models.NewTransactionView(t))
	return nil
}
