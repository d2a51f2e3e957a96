package services

import (
	"context"
	"errors"
	"fmt"

	"docarchive/internal/caching"
	"docarchive/internal/common"
	"docarchive/internal/config"
	"docarchive/internal/domain"
	"docarchive/internal/hierarchy"
	"docarchive/internal/models"
	"docarchive/internal/repositories"

	"go.uber.org/zap"
)

// CapacityAllocator finds a folder with room for one more file, building a
// full room-to-folder chain when the caller's policy allows it.
type CapacityAllocator interface {
	Allocate(ctx context.Context, scope models.Scope, caller string) (*models.Allocation, error)
	// AllocateForFile allocates and assigns the file to the folder in the
	// same transaction.
	AllocateForFile(ctx context.Context, scope models.Scope, fileID int64, caller string) (*models.Allocation, error)
}

type capacityAllocator struct {
	txManager repositories.TxManager
	locations repositories.StorageLocationRepository
	files     repositories.FileRepository
	directory repositories.DirectoryRepository
	blobStore BlobStore
	cacheSvc  caching.CacheService
	txLog     TransactionLogService
	policy    *config.StoragePolicy
	logger    *zap.Logger
}

func NewCapacityAllocator(
	txManager repositories.TxManager,
	locations repositories.StorageLocationRepository,
	files repositories.FileRepository,
	directory repositories.DirectoryRepository,
	blobStore BlobStore,
	cacheSvc caching.CacheService,
	txLog TransactionLogService,
	policy *config.StoragePolicy,
	logger *zap.Logger,
) CapacityAllocator {
	return &capacityAllocator{
		txManager: txManager,
		locations: locations,
		files:     files,
		directory: directory,
		blobStore: blobStore,
		cacheSvc:  cacheSvc,
		txLog:     txLog,
		policy:    policy,
		logger:    logger,
	}
}

func (a *capacityAllocator) Allocate(ctx context.Context, scope models.Scope, caller string) (*models.Allocation, error) {
	scope, err := resolveScope(ctx, a.directory, scope)
	if err != nil {
		return nil, err
	}

	var allocation *models.Allocation
	err = a.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var txErr error
		allocation, txErr = a.findOrProvision(txCtx, scope, caller)
		return txErr
	})
	a.afterAllocation(ctx, scope, allocation, false, err)
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

func (a *capacityAllocator) AllocateForFile(ctx context.Context, scope models.Scope, fileID int64, caller string) (*models.Allocation, error) {
	scope, err := resolveScope(ctx, a.directory, scope)
	if err != nil {
		return nil, err
	}

	var allocation *models.Allocation
	err = a.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		file, err := a.files.GetByID(txCtx, fileID)
		if err != nil {
			return err
		}
		if file.StorageLocationID != nil {
			return domain.Validation("file %d is already stored in location %d", fileID, *file.StorageLocationID)
		}

		allocation, err = a.findOrProvision(txCtx, scope, caller)
		if err != nil {
			return err
		}

		folderID := allocation.StorageLocationID
		if err := a.files.SetStorageLocation(txCtx, fileID, &folderID); err != nil {
			return err
		}
		allocation.CurrentFiles++
		return nil
	})

	actor := common.ActorFromContext(ctx)
	if err != nil {
		a.txLog.LogTransaction(ctx, actor, models.OutcomeFailed, models.OperationAllocate,
			fmt.Sprintf("Failed to store file %d: %v", fileID, err))
	} else {
		a.txLog.LogTransaction(ctx, actor, models.OutcomeSuccess, models.OperationAllocate,
			fmt.Sprintf("Stored file %d in %s", fileID, allocation.FullPath))
	}
	a.afterAllocation(ctx, scope, allocation, true, err)
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

// findOrProvision must run inside a transaction. The scope lock makes the
// search, the emptiness check and the chain insert one atomic step.
func (a *capacityAllocator) findOrProvision(ctx context.Context, scope models.Scope, caller string) (*models.Allocation, error) {
	if err := a.locations.LockScope(ctx, scope); err != nil {
		return nil, err
	}

	folder, err := a.locations.FindFirstFreeFolder(ctx, scope)
	if err != nil {
		return nil, err
	}
	if folder != nil {
		return allocationFor(folder, false), nil
	}

	cabinets, err := a.locations.CountByType(ctx, scope, models.UnitTypeCabinet)
	if err != nil {
		return nil, err
	}
	if cabinets > 0 {
		folders, err := a.locations.CountByType(ctx, scope, models.UnitTypeFolder)
		if err != nil {
			return nil, err
		}
		if folders == 0 {
			return nil, domain.New(domain.CodeNoStorageProvisioned,
				"No folders have been set up for this department. Please contact the administrator")
		}
		return nil, domain.New(domain.CodeStorageFull,
			"All folders for this department are full. Please contact the administrator")
	}

	policy := a.policy.For(caller)
	if !policy.AutoProvision {
		return nil, domain.New(domain.CodeNoStorageProvisioned,
			"No storage has been set up for this department. Please contact the administrator")
	}

	folder, err = a.provision(ctx, scope, policy)
	if err != nil {
		return nil, err
	}
	return allocationFor(folder, true), nil
}

// provision inserts one node per level and ensures the folder's directory
// before the surrounding transaction commits.
func (a *capacityAllocator) provision(ctx context.Context, scope models.Scope, policy config.AllocationPolicy) (*models.FolderUsage, error) {
	names, err := a.directory.GetScopeNames(ctx, scope)
	if err != nil {
		return nil, err
	}

	users := 0
	if policy.ScaleWithUsers {
		if users, err = a.directory.CountUsers(ctx, scope); err != nil {
			return nil, err
		}
	}
	capacity := policy.FolderCapacity(users)

	var parent *models.StorageLocation
	for _, unitType := range hierarchy.Chain() {
		existing, err := a.locations.ListUnitNames(ctx, scope, unitType)
		if err != nil {
			return nil, err
		}
		name := hierarchy.UnitName(unitType, hierarchy.NextSequence(unitType, existing))

		loc := &models.StorageLocation{
			UnitType:        unitType,
			UnitName:        name,
			DepartmentID:    scope.DepartmentID,
			SubDepartmentID: scope.SubDepartmentID,
		}
		if parent == nil {
			loc.FullPath = hierarchy.Materialize(names.DepartmentName, names.SubDepartmentName, name)
		} else {
			parentID := parent.ID
			loc.ParentID = &parentID
			loc.FullPath = hierarchy.Extend(parent.FullPath, name)
		}
		if unitType == models.UnitTypeFolder {
			loc.FolderCapacity = &capacity
		}

		if err := a.locations.Create(ctx, loc); err != nil {
			return nil, err
		}
		parent = loc
	}

	if err := a.blobStore.EnsureDirectory(ctx, parent.FullPath); err != nil {
		return nil, err
	}

	a.logger.Info("auto-provisioned storage chain",
		zap.String("scope", scope.Key()),
		zap.Int64("folder_id", parent.ID),
		zap.String("full_path", parent.FullPath),
		zap.Int("folder_capacity", capacity),
	)
	return &models.FolderUsage{StorageLocation: *parent}, nil
}

func (a *capacityAllocator) afterAllocation(ctx context.Context, scope models.Scope, allocation *models.Allocation, claimed bool, err error) {
	if err != nil {
		var storageErr *domain.StorageError
		if errors.As(err, &storageErr) && storageErr.IsUserError() {
			a.logger.Info("allocation refused", zap.String("scope", scope.Key()), zap.Error(err))
		} else {
			a.logger.Error("allocation failed", zap.String("scope", scope.Key()), zap.Error(err))
		}
		return
	}

	if allocation.Provisioned {
		a.txLog.LogTransaction(ctx, common.ActorFromContext(ctx), models.OutcomeSuccess, models.OperationAutoProvision,
			fmt.Sprintf("Provisioned storage %s", allocation.FullPath))
	}
	if allocation.Provisioned || claimed {
		invalidateTree(ctx, a.cacheSvc, a.logger, scope)
	}
}

func allocationFor(folder *models.FolderUsage, provisioned bool) *models.Allocation {
	capacity := 0
	if folder.FolderCapacity != nil {
		capacity = *folder.FolderCapacity
	}
	return &models.Allocation{
		StorageLocationID: folder.ID,
		FullPath:          folder.FullPath,
		FolderCapacity:    capacity,
		CurrentFiles:      folder.CurrentFiles,
		Provisioned:       provisioned,
	}
}

// invalidateTree drops the cached snapshot of a scope. Cache failures only
// shorten the life of a stale snapshot to its TTL.
func invalidateTree(ctx context.Context, cacheSvc caching.CacheService, logger *zap.Logger, scope models.Scope) {
	if cacheSvc == nil {
		return
	}
	if err := cacheSvc.InvalidateScope(ctx, scope); err != nil {
		logger.Warn("failed to invalidate tree snapshot", zap.String("scope", scope.Key()), zap.Error(err))
	}
}
