package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docarchive/internal/caching"
	"docarchive/internal/common"
	"docarchive/internal/config"
	"docarchive/internal/domain"
	"docarchive/internal/hierarchy"
	"docarchive/internal/models"
	"docarchive/internal/repositories"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
)

// StorageAdminService is the administrator-facing editor of the storage tree.
type StorageAdminService interface {
	AddUnit(ctx context.Context, req *models.AddUnitRequest) (int64, error)
	EditCapacity(ctx context.Context, id int64, capacity int) error
	DeleteUnit(ctx context.Context, id int64) error
	RemoveFileFromLocation(ctx context.Context, fileID int64) error
}

type storageAdminService struct {
	txManager repositories.TxManager
	locations repositories.StorageLocationRepository
	files     repositories.FileRepository
	directory repositories.DirectoryRepository
	blobStore BlobStore
	cacheSvc  caching.CacheService
	txLog     TransactionLogService
	policy    config.AdminPolicy
	logger    *zap.Logger
}

func NewStorageAdminService(
	txManager repositories.TxManager,
	locations repositories.StorageLocationRepository,
	files repositories.FileRepository,
	directory repositories.DirectoryRepository,
	blobStore BlobStore,
	cacheSvc caching.CacheService,
	txLog TransactionLogService,
	policy config.AdminPolicy,
	logger *zap.Logger,
) StorageAdminService {
	return &storageAdminService{
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

func (s *storageAdminService) validateAddUnitRequest(req *models.AddUnitRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.UnitType, validation.Required),
		validation.Field(&req.UnitName, validation.Required, validation.Length(1, 100), validation.By(pathSafeName)),
		validation.Field(&req.ParentID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// pathSafeName keeps unit names usable as a single directory component.
func pathSafeName(value interface{}) error {
	name, _ := value.(string)
	if name == "." || name == ".." || strings.ContainsAny(name, `/\>`) {
		return errors.New("must not contain path separators or '>'")
	}
	return nil
}

func (s *storageAdminService) AddUnit(ctx context.Context, req *models.AddUnitRequest) (int64, error) {
	id, err := s.addUnit(ctx, req)
	s.record(ctx, models.OperationAddUnit, err, fmt.Sprintf("Added %s %s (id %d)", req.UnitType, req.UnitName, id))
	return id, err
}

func (s *storageAdminService) addUnit(ctx context.Context, req *models.AddUnitRequest) (int64, error) {
	req.UnitName = strings.TrimSpace(req.UnitName)
	if err := s.validateAddUnitRequest(req); err != nil {
		return 0, domain.Wrap(domain.CodeValidation, err, "invalid storage unit")
	}

	unitType, err := hierarchy.ParseUnitType(req.UnitType)
	if err != nil {
		return 0, err
	}

	if unitType == models.UnitTypeFolder {
		if req.FolderCapacity == nil || *req.FolderCapacity <= 0 {
			return 0, domain.New(domain.CodeInvalidCapacity, "Folder capacity must be greater than zero")
		}
	} else if req.FolderCapacity != nil {
		return 0, domain.Validation("only folders have a capacity")
	}

	scope, err := resolveScope(ctx, s.directory, req.Scope())
	if err != nil {
		return 0, err
	}

	loc := &models.StorageLocation{
		UnitType:        unitType,
		UnitName:        req.UnitName,
		DepartmentID:    scope.DepartmentID,
		SubDepartmentID: scope.SubDepartmentID,
		FolderCapacity:  req.FolderCapacity,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.locations.LockScope(txCtx, scope); err != nil {
			return err
		}

		if req.ParentID != nil {
			parent, err := s.locations.GetByIDForUpdate(txCtx, *req.ParentID)
			if err != nil {
				return err
			}
			if !scope.Contains(parent) {
				return domain.New(domain.CodeInvalidHierarchy, "parent unit %d belongs to a different department", parent.ID)
			}
			if err := hierarchy.CheckContainment(parent.UnitType, unitType); err != nil {
				return err
			}
			loc.ParentID = &parent.ID
			loc.FullPath = hierarchy.Extend(parent.FullPath, loc.UnitName)
		} else {
			if err := hierarchy.CheckContainment(hierarchy.NoParent, unitType); err != nil {
				return err
			}
			names, err := s.directory.GetScopeNames(txCtx, scope)
			if err != nil {
				return err
			}
			loc.FullPath = hierarchy.Materialize(names.DepartmentName, names.SubDepartmentName, loc.UnitName)
		}

		if err := s.locations.Create(txCtx, loc); err != nil {
			return err
		}
		return s.blobStore.EnsureDirectory(txCtx, loc.FullPath)
	})
	if err != nil {
		return 0, err
	}

	invalidateTree(ctx, s.cacheSvc, s.logger, scope)
	return loc.ID, nil
}

func (s *storageAdminService) EditCapacity(ctx context.Context, id int64, capacity int) error {
	err := s.editCapacity(ctx, id, capacity)
	s.record(ctx, models.OperationEditCapacity, err, fmt.Sprintf("Set capacity of folder %d to %d", id, capacity))
	return err
}

func (s *storageAdminService) editCapacity(ctx context.Context, id int64, capacity int) error {
	if capacity <= 0 {
		return domain.New(domain.CodeInvalidCapacity, "Folder capacity must be greater than zero")
	}

	var scope models.Scope
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		loc, err := s.lockTarget(txCtx, id)
		if err != nil {
			return err
		}
		scope = loc.Scope()
		if loc.UnitType != models.UnitTypeFolder {
			return domain.Validation("only folders have a capacity; unit %d is a %s", id, loc.UnitType)
		}

		if !s.policy.AllowCapacityBelowOccupancy {
			current, err := s.files.CountFilesIn(txCtx, id)
			if err != nil {
				return err
			}
			if capacity < current {
				return domain.New(domain.CodeCapacityBelowOccupancy,
					"Folder %s already holds %d files; capacity cannot be set to %d", loc.UnitName, current, capacity)
			}
		}

		return s.locations.UpdateCapacity(txCtx, id, capacity)
	})
	if err != nil {
		return err
	}

	invalidateTree(ctx, s.cacheSvc, s.logger, scope)
	return nil
}

func (s *storageAdminService) DeleteUnit(ctx context.Context, id int64) error {
	err := s.deleteUnit(ctx, id)
	s.record(ctx, models.OperationDeleteUnit, err, fmt.Sprintf("Deleted storage unit %d", id))
	return err
}

func (s *storageAdminService) deleteUnit(ctx context.Context, id int64) error {
	var scope models.Scope
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		loc, err := s.lockTarget(txCtx, id)
		if err != nil {
			return err
		}
		scope = loc.Scope()

		children, err := s.locations.CountChildren(txCtx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return domain.New(domain.CodeHasChildren,
				"Cannot delete %s %s: it still contains %d units", loc.UnitType, loc.UnitName, children)
		}

		if s.policy.BlockDeleteWithFiles && loc.UnitType == models.UnitTypeFolder {
			current, err := s.files.CountFilesIn(txCtx, id)
			if err != nil {
				return err
			}
			if current > 0 {
				return domain.New(domain.CodeHasFiles,
					"Cannot delete folder %s: it still holds %d files", loc.UnitName, current)
			}
		}

		return s.locations.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	invalidateTree(ctx, s.cacheSvc, s.logger, scope)
	return nil
}

// lockTarget reads a node for update after taking its scope lock, so the
// check and the write cannot interleave with allocation in that scope.
func (s *storageAdminService) lockTarget(ctx context.Context, id int64) (*models.StorageLocation, error) {
	loc, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.locations.LockScope(ctx, loc.Scope()); err != nil {
		return nil, err
	}
	return s.locations.GetByIDForUpdate(ctx, id)
}

func (s *storageAdminService) RemoveFileFromLocation(ctx context.Context, fileID int64) error {
	err := s.removeFileFromLocation(ctx, fileID)
	s.record(ctx, models.OperationRemoveFile, err, fmt.Sprintf("Removed file %d from its storage location", fileID))
	return err
}

func (s *storageAdminService) removeFileFromLocation(ctx context.Context, fileID int64) error {
	var scope *models.Scope
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		file, err := s.files.GetByID(txCtx, fileID)
		if err != nil {
			return err
		}
		if file.StorageLocationID == nil {
			return nil
		}
		loc, err := s.locations.GetByID(txCtx, *file.StorageLocationID)
		if err != nil {
			return err
		}
		locScope := loc.Scope()
		scope = &locScope
		return s.files.SetStorageLocation(txCtx, fileID, nil)
	})
	if err != nil {
		return err
	}

	if scope != nil {
		invalidateTree(ctx, s.cacheSvc, s.logger, *scope)
	}
	return nil
}

// record writes the ledger entry for an administrator operation.
func (s *storageAdminService) record(ctx context.Context, operationType string, err error, successMessage string) {
	actor := common.ActorFromContext(ctx)
	if err != nil {
		s.logger.Warn("storage operation failed", zap.String("operation_type", operationType), zap.Error(err))
		s.txLog.LogTransaction(ctx, actor, models.OutcomeFailed, operationType, err.Error())
		return
	}
	s.txLog.LogTransaction(ctx, actor, models.OutcomeSuccess, operationType, successMessage)
}
