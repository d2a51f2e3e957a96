package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"docarchive/internal/config"
	"docarchive/internal/domain"
	"docarchive/internal/models"
	"docarchive/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type CapacityAllocatorTestSuite struct {
	suite.Suite
	store     *testhelpers.MemStore
	blobStore *MockBlobStore
	cacheSvc  *MockCacheService
	txLog     *MockTransactionLogService
	policy    *config.StoragePolicy
	allocator CapacityAllocator
	scope     models.Scope
	ctx       context.Context
}

func (suite *CapacityAllocatorTestSuite) SetupTest() {
	suite.store = testhelpers.NewMemStore()
	suite.store.AddDepartment(5, "Records")
	suite.store.AddSubDepartment(50, 5, "Deeds")

	suite.blobStore = &MockBlobStore{}
	suite.cacheSvc = &MockCacheService{}
	suite.txLog = &MockTransactionLogService{}
	suite.cacheSvc.On("InvalidateScope", mock.Anything, mock.Anything).Return(nil).Maybe()
	suite.txLog.On("LogTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()

	suite.policy = config.DefaultStoragePolicy()
	suite.allocator = suite.newAllocator()
	suite.scope = models.Scope{DepartmentID: 5}
	suite.ctx = context.Background()
}

func (suite *CapacityAllocatorTestSuite) newAllocator() CapacityAllocator {
	return NewCapacityAllocator(
		suite.store,
		suite.store.Locations(),
		suite.store.Files(),
		suite.store.Directory(),
		suite.blobStore,
		suite.cacheSvc,
		suite.txLog,
		suite.policy,
		zap.NewNop(),
	)
}

func TestCapacityAllocatorTestSuite(t *testing.T) {
	suite.Run(t, new(CapacityAllocatorTestSuite))
}

// seedChain builds room > cabinet > layer > box and returns the box id.
func (suite *CapacityAllocatorTestSuite) seedChain(scope models.Scope) int64 {
	var parent *int64
	path := "Records"
	for _, step := range []struct {
		unitType models.UnitType
		name     string
	}{
		{models.UnitTypeRoom, "R001"},
		{models.UnitTypeCabinet, "C001"},
		{models.UnitTypeLayer, "L001"},
		{models.UnitTypeBox, "B001"},
	} {
		path += " > " + step.name
		id := suite.store.SeedLocation(models.StorageLocation{
			UnitType:        step.unitType,
			UnitName:        step.name,
			ParentID:        parent,
			DepartmentID:    scope.DepartmentID,
			SubDepartmentID: scope.SubDepartmentID,
			FullPath:        path,
		})
		parent = int64Ptr(id)
	}
	return *parent
}

func (suite *CapacityAllocatorTestSuite) seedFolder(boxID int64, name string, capacity int) int64 {
	box, ok := suite.store.Location(boxID)
	require.True(suite.T(), ok)
	return suite.store.SeedLocation(models.StorageLocation{
		UnitType:        models.UnitTypeFolder,
		UnitName:        name,
		ParentID:        int64Ptr(boxID),
		DepartmentID:    box.DepartmentID,
		SubDepartmentID: box.SubDepartmentID,
		FolderCapacity:  intPtr(capacity),
		FullPath:        box.FullPath + " > " + name,
	})
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_EmptyScopeProvisionsChain() {
	expectedPath := "Records > R001 > C001 > L001 > B001 > F001"
	suite.blobStore.On("EnsureDirectory", mock.Anything, expectedPath).Return(nil).Once()

	allocation, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerUpload)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), expectedPath, allocation.FullPath)
	assert.Equal(suite.T(), 100, allocation.FolderCapacity)
	assert.Equal(suite.T(), 0, allocation.CurrentFiles)
	assert.True(suite.T(), allocation.Provisioned)
	assert.Equal(suite.T(), 5, suite.store.LocationCount())

	// walk back up: one node per level, each parented on the previous one
	expected := []models.UnitType{models.UnitTypeFolder, models.UnitTypeBox, models.UnitTypeLayer, models.UnitTypeCabinet, models.UnitTypeRoom}
	current, ok := suite.store.Location(allocation.StorageLocationID)
	require.True(suite.T(), ok)
	for i, unitType := range expected {
		assert.Equal(suite.T(), unitType, current.UnitType)
		if i == len(expected)-1 {
			assert.Nil(suite.T(), current.ParentID)
			break
		}
		require.NotNil(suite.T(), current.ParentID)
		current, ok = suite.store.Location(*current.ParentID)
		require.True(suite.T(), ok)
	}

	suite.blobStore.AssertExpectations(suite.T())
	suite.txLog.AssertCalled(suite.T(), "LogTransaction", mock.Anything, mock.Anything,
		models.OutcomeSuccess, models.OperationAutoProvision, mock.Anything)
	suite.cacheSvc.AssertCalled(suite.T(), "InvalidateScope", mock.Anything, suite.scope)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_AdminCallerDoesNotProvision() {
	_, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerAdmin)

	assert.ErrorIs(suite.T(), err, domain.ErrNoStorageProvisioned)
	assert.Equal(suite.T(), 0, suite.store.LocationCount())
	suite.blobStore.AssertNotCalled(suite.T(), "EnsureDirectory", mock.Anything, mock.Anything)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_ScalesCapacityWithUsers() {
	suite.store.AddUsers(suite.scope, 25)
	suite.blobStore.On("EnsureDirectory", mock.Anything, mock.Anything).Return(nil)

	allocation, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerUpload)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 250, allocation.FolderCapacity)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_SubDepartmentPath() {
	scope := models.Scope{SubDepartmentID: int64Ptr(50)}
	suite.blobStore.On("EnsureDirectory", mock.Anything, "Records > Deeds > R001 > C001 > L001 > B001 > F001").Return(nil)

	allocation, err := suite.allocator.Allocate(suite.ctx, scope, config.CallerUpload)
	require.NoError(suite.T(), err)

	folder, ok := suite.store.Location(allocation.StorageLocationID)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), int64(5), folder.DepartmentID)
	assert.Equal(suite.T(), int64(50), *folder.SubDepartmentID)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_ContinuesExistingSequences() {
	suite.store.SeedLocation(models.StorageLocation{
		UnitType: models.UnitTypeRoom, UnitName: "R004", DepartmentID: 5, FullPath: "Records > R004",
	})
	suite.blobStore.On("EnsureDirectory", mock.Anything, "Records > R005 > C001 > L001 > B001 > F001").Return(nil)

	allocation, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerUpload)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Records > R005 > C001 > L001 > B001 > F001", allocation.FullPath)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_FullFolderIsStorageFull() {
	boxID := suite.seedChain(suite.scope)
	folderID := suite.seedFolder(boxID, "F001", 2)
	suite.store.AddFile(1, "a.pdf")
	suite.store.AddFile(2, "b.pdf")
	suite.store.PlaceFile(1, folderID)
	suite.store.PlaceFile(2, folderID)

	_, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerUpload)
	assert.ErrorIs(suite.T(), err, domain.ErrStorageFull)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_CabinetsWithoutFolders() {
	suite.seedChain(suite.scope)

	_, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerUpload)
	assert.ErrorIs(suite.T(), err, domain.ErrNoStorageProvisioned)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_PicksLowestIDWithSpace() {
	boxID := suite.seedChain(suite.scope)
	full := suite.seedFolder(boxID, "F001", 1)
	first := suite.seedFolder(boxID, "F002", 10)
	suite.seedFolder(boxID, "F003", 10)
	suite.store.AddFile(1, "a.pdf")
	suite.store.PlaceFile(1, full)

	for i := 0; i < 3; i++ {
		allocation, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerAdmin)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), first, allocation.StorageLocationID)
		assert.False(suite.T(), allocation.Provisioned)
	}
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_InvalidScope() {
	_, err := suite.allocator.Allocate(suite.ctx, models.Scope{}, config.CallerUpload)
	assert.ErrorIs(suite.T(), err, domain.ErrInvalidScope)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_DirectoryFailureRollsBack() {
	suite.blobStore.On("EnsureDirectory", mock.Anything, mock.Anything).
		Return(domain.Wrap(domain.CodeFolderCreationFailed, errors.New("disk full"), "failed to create storage directory"))

	_, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerUpload)

	assert.ErrorIs(suite.T(), err, domain.ErrFolderCreationFailed)
	assert.Equal(suite.T(), 0, suite.store.LocationCount())
	suite.cacheSvc.AssertNotCalled(suite.T(), "InvalidateScope", mock.Anything, mock.Anything)
}

func (suite *CapacityAllocatorTestSuite) TestAllocateForFile_ClaimsSlot() {
	boxID := suite.seedChain(suite.scope)
	folderID := suite.seedFolder(boxID, "F001", 3)
	suite.store.AddFile(7, "deed.pdf")

	allocation, err := suite.allocator.AllocateForFile(suite.ctx, suite.scope, 7, config.CallerUpload)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), folderID, allocation.StorageLocationID)
	assert.Equal(suite.T(), 1, allocation.CurrentFiles)
	require.NotNil(suite.T(), suite.store.FileLocation(7))
	assert.Equal(suite.T(), folderID, *suite.store.FileLocation(7))
	suite.txLog.AssertCalled(suite.T(), "LogTransaction", mock.Anything, mock.Anything,
		models.OutcomeSuccess, models.OperationAllocate, mock.Anything)
}

func (suite *CapacityAllocatorTestSuite) TestAllocateForFile_AlreadyStored() {
	boxID := suite.seedChain(suite.scope)
	folderID := suite.seedFolder(boxID, "F001", 3)
	suite.store.AddFile(7, "deed.pdf")
	suite.store.PlaceFile(7, folderID)

	_, err := suite.allocator.AllocateForFile(suite.ctx, suite.scope, 7, config.CallerUpload)
	assert.ErrorIs(suite.T(), err, domain.ErrValidation)
	suite.txLog.AssertCalled(suite.T(), "LogTransaction", mock.Anything, mock.Anything,
		models.OutcomeFailed, models.OperationAllocate, mock.Anything)
}

func (suite *CapacityAllocatorTestSuite) TestAllocateForFile_UnknownFile() {
	_, err := suite.allocator.AllocateForFile(suite.ctx, suite.scope, 404, config.CallerUpload)
	assert.ErrorIs(suite.T(), err, domain.ErrNotFound)
}

func (suite *CapacityAllocatorTestSuite) TestAllocateForFile_LastSlotRace() {
	boxID := suite.seedChain(suite.scope)
	folderID := suite.seedFolder(boxID, "F001", 1)
	const contenders = 8
	for i := 1; i <= contenders; i++ {
		suite.store.AddFile(int64(i), "scan.pdf")
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = suite.allocator.AllocateForFile(suite.ctx, suite.scope, int64(i+1), config.CallerUpload)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(suite.T(), err, domain.ErrStorageFull)
	}
	assert.Equal(suite.T(), 1, succeeded)
	assert.Empty(suite.T(), suite.store.OverCapacity())

	files, err := suite.store.Files().CountFilesIn(suite.ctx, folderID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, files)
}

func (suite *CapacityAllocatorTestSuite) TestAllocate_ConcurrentProvisioningBuildsOneChain() {
	suite.blobStore.On("EnsureDirectory", mock.Anything, mock.Anything).Return(nil)

	const contenders = 6
	var wg sync.WaitGroup
	folders := make([]int64, contenders)
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			allocation, err := suite.allocator.Allocate(suite.ctx, suite.scope, config.CallerUpload)
			errs[i] = err
			if err == nil {
				folders[i] = allocation.StorageLocationID
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(suite.T(), errs[i])
		assert.Equal(suite.T(), folders[0], folders[i])
	}
	assert.Equal(suite.T(), 5, suite.store.LocationCount())
}
