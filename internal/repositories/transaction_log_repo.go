package repositories

import (
	"context"
	"fmt"
	"time"

	"docarchive/internal/models"

	"github.com/google/uuid"
)

type TransactionLogRepository interface {
	// Create appends a ledger entry
	Create(ctx context.Context, entry *models.TransactionEntry) error

	// List ledger entries with filtering options, newest first
	List(ctx context.Context, filters *models.TransactionFilters) ([]*models.TransactionEntry, error)
}

type transactionLogRepo struct {
	db DBTX
}

func NewTransactionLogRepository(db DBTX) TransactionLogRepository {
	return &transactionLogRepo{db: db}
}

// Create writes on the pool, never on a context transaction, so failure
// entries survive the rollback of the work they describe.
func (r *transactionLogRepo) Create(ctx context.Context, entry *models.TransactionEntry) error {
	entry.CreatedAt = time.Now()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO transactions (transaction_id, actor_id, status, operation_type, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Status,
		entry.OperationType,
		entry.Message,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write transaction entry: %w", err)
	}
	return nil
}

func (r *transactionLogRepo) List(ctx context.Context, filters *models.TransactionFilters) ([]*models.TransactionEntry, error) {
	if filters == nil {
		filters = &models.TransactionFilters{}
	}

	query := `
		SELECT transaction_id, actor_id, status, operation_type, message, created_at
		FROM transactions
		WHERE 1 = 1
	`

	args := []interface{}{}
	argIdx := 0

	if filters.OperationType != nil {
		argIdx++
		query += fmt.Sprintf(" AND operation_type = $%d", argIdx)
		args = append(args, *filters.OperationType)
	}

	if filters.Status != nil {
		argIdx++
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filters.Status)
	}

	if filters.ActorID != nil {
		argIdx++
		query += fmt.Sprintf(" AND actor_id = $%d", argIdx)
		args = append(args, *filters.ActorID)
	}

	if filters.StartDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filters.StartDate)
	}

	if filters.EndDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filters.EndDate)
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		argIdx++
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			argIdx++
			query += fmt.Sprintf(" OFFSET $%d", argIdx)
			args = append(args, filters.Offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var entries []*models.TransactionEntry
	for rows.Next() {
		entry := &models.TransactionEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Status,
			&entry.OperationType,
			&entry.Message,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
