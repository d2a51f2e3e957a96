package services

import (
	"context"
	"time"

	"docarchive/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) EnsureDirectory(ctx context.Context, fullPath string) error {
	args := m.Called(ctx, fullPath)
	return args.Error(0)
}

func (m *MockBlobStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) TreeGeneration(ctx context.Context, scope models.Scope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheService) GetTree(ctx context.Context, scope models.Scope) (*models.TreeSnapshot, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TreeSnapshot), args.Error(1)
}

func (m *MockCacheService) SetTree(ctx context.Context, scope models.Scope, snapshot *models.TreeSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, scope, snapshot, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateScope(ctx context.Context, scope models.Scope) error {
	args := m.Called(ctx, scope)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateAllCache(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockTransactionLogService struct {
	mock.Mock
}

func (m *MockTransactionLogService) LogTransaction(ctx context.Context, actorID *int64, outcome, operationType, message string) {
	m.Called(ctx, actorID, outcome, operationType, message)
}

func (m *MockTransactionLogService) ListTransactions(ctx context.Context, filters *models.TransactionFilters) ([]*models.TransactionEntry, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TransactionEntry), args.Error(1)
}

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }
