package services

import (
	"context"

	"docarchive/internal/models"
	"docarchive/internal/repositories"

	"go.uber.org/zap"
)

// TransactionLogService records the outcome of every storage mutation.
type TransactionLogService interface {
	// LogTransaction never fails the caller; write errors are logged.
	LogTransaction(ctx context.Context, actorID *int64, outcome, operationType, message string)
	ListTransactions(ctx context.Context, filters *models.TransactionFilters) ([]*models.TransactionEntry, error)
}

type transactionLogService struct {
	repo   repositories.TransactionLogRepository
	logger *zap.Logger
}

func NewTransactionLogService(repo repositories.TransactionLogRepository, logger *zap.Logger) TransactionLogService {
	return &transactionLogService{repo: repo, logger: logger}
}

func (s *transactionLogService) LogTransaction(ctx context.Context, actorID *int64, outcome, operationType, message string) {
	entry := &models.TransactionEntry{
		ActorID:       actorID,
		Status:        outcome,
		OperationType: operationType,
		Message:       message,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record transaction",
			zap.String("operation_type", operationType),
			zap.String("status", outcome),
			zap.Error(err),
		)
	}
}

func (s *transactionLogService) ListTransactions(ctx context.Context, filters *models.TransactionFilters) ([]*models.TransactionEntry, error) {
	if filters == nil {
		filters = &models.TransactionFilters{}
	}
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 100
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	return s.repo.List(ctx, filters)
}
