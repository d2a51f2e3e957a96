package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxFn is a unit of work executed inside a transaction.
type TxFn func(ctx context.Context) error

// TxManager runs units of work in a database transaction.
type TxManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}

// TxBeginner is implemented by *pgxpool.Pool and pgxmock pools.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

const defaultTxAttempts = 3

type txManager struct {
	db       TxBeginner
	attempts int
	logger   *zap.Logger
}

// NewTxManager creates a transaction manager that retries serialization
// failures and deadlocks up to three times.
func NewTxManager(db TxBeginner, logger *zap.Logger) TxManager {
	return &txManager{db: db, attempts: defaultTxAttempts, logger: logger}
}

// ExecTx executes fn within a read-committed transaction stored in the
// context. Nested calls join the outer transaction.
func (tm *txManager) ExecTx(ctx context.Context, fn TxFn) error {
	if GetTx(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= tm.attempts; attempt++ {
		err = tm.run(ctx, fn)
		if err == nil || !IsRetryableError(err) {
			return err
		}
		tm.logger.Warn("retrying transaction after conflict",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return err
}

func (tm *txManager) run(ctx context.Context, fn TxFn) error {
	tx, err := tm.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			tm.logger.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(SetTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
