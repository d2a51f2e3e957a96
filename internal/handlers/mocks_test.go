package handlers

import (
	"context"
	"time"

	"docarchive/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockCapacityAllocator struct {
	mock.Mock
}

func (m *MockCapacityAllocator) Allocate(ctx context.Context, scope models.Scope, caller string) (*models.Allocation, error) {
	args := m.Called(ctx, scope, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Allocation), args.Error(1)
}

func (m *MockCapacityAllocator) AllocateForFile(ctx context.Context, scope models.Scope, fileID int64, caller string) (*models.Allocation, error) {
	args := m.Called(ctx, scope, fileID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Allocation), args.Error(1)
}

type MockStorageAdminService struct {
	mock.Mock
}

func (m *MockStorageAdminService) AddUnit(ctx context.Context, req *models.AddUnitRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorageAdminService) EditCapacity(ctx context.Context, id int64, capacity int) error {
	args := m.Called(ctx, id, capacity)
	return args.Error(0)
}

func (m *MockStorageAdminService) DeleteUnit(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorageAdminService) RemoveFileFromLocation(ctx context.Context, fileID int64) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}

type MockStorageTreeService struct {
	mock.Mock
}

func (m *MockStorageTreeService) GetTree(ctx context.Context, scope models.Scope) ([]*models.TreeNode, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TreeNode), args.Error(1)
}

func (m *MockStorageTreeService) GetFilesIn(ctx context.Context, storageLocationID int64) ([]models.StoredFile, error) {
	args := m.Called(ctx, storageLocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StoredFile), args.Error(1)
}

func (m *MockStorageTreeService) AncestryOf(ctx context.Context, storageLocationID int64) ([]models.StorageLocation, error) {
	args := m.Called(ctx, storageLocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StorageLocation), args.Error(1)
}

func (m *MockStorageTreeService) ListScopes(ctx context.Context) ([]models.Scope, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Scope), args.Error(1)
}

func (m *MockStorageTreeService) FolderUsage(ctx context.Context, scope models.Scope) ([]models.FolderUsage, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FolderUsage), args.Error(1)
}

func (m *MockStorageTreeService) VerifyIntegrity(ctx context.Context, scope models.Scope) ([]models.IntegrityIssue, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IntegrityIssue), args.Error(1)
}

func (m *MockStorageTreeService) ResetSnapshots(ctx context.Context) error {
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

// MockPinger stands in for the database pool, the cache and the blob store
// in health checks.
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockCacheService struct {
	MockPinger
}

func (m *MockCacheService) TreeGeneration(ctx context.Context, scope models.Scope) (int64, error) {
	return 0, nil
}

func (m *MockCacheService) GetTree(ctx context.Context, scope models.Scope) (*models.TreeSnapshot, error) {
	return nil, nil
}

func (m *MockCacheService) SetTree(ctx context.Context, scope models.Scope, snapshot *models.TreeSnapshot, ttl time.Duration) error {
	return nil
}

func (m *MockCacheService) InvalidateScope(ctx context.Context, scope models.Scope) error {
	return nil
}

func (m *MockCacheService) InvalidateAllCache(ctx context.Context) error {
	return nil
}

type MockBlobStore struct {
	MockPinger
}

func (m *MockBlobStore) EnsureDirectory(ctx context.Context, fullPath string) error {
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }
