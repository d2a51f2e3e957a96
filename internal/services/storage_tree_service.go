package services

import (
	"context"
	"errors"
	"time"

	"docarchive/internal/caching"
	"docarchive/internal/domain"
	"docarchive/internal/hierarchy"
	"docarchive/internal/models"
	"docarchive/internal/repositories"

	"go.uber.org/zap"
)

const treeSnapshotTTL = 5 * time.Minute

// StorageTreeService is the read side of the hierarchy handed to renderers
// and to the background monitor.
type StorageTreeService interface {
	GetTree(ctx context.Context, scope models.Scope) ([]*models.TreeNode, error)
	GetFilesIn(ctx context.Context, storageLocationID int64) ([]models.StoredFile, error)
	AncestryOf(ctx context.Context, storageLocationID int64) ([]models.StorageLocation, error)
	ListScopes(ctx context.Context) ([]models.Scope, error)
	FolderUsage(ctx context.Context, scope models.Scope) ([]models.FolderUsage, error)
	VerifyIntegrity(ctx context.Context, scope models.Scope) ([]models.IntegrityIssue, error)
	// ResetSnapshots drops every cached tree.
	ResetSnapshots(ctx context.Context) error
}

type storageTreeService struct {
	locations repositories.StorageLocationRepository
	files     repositories.FileRepository
	directory repositories.DirectoryRepository
	cacheSvc  caching.CacheService
	logger    *zap.Logger
}

func NewStorageTreeService(
	locations repositories.StorageLocationRepository,
	files repositories.FileRepository,
	directory repositories.DirectoryRepository,
	cacheSvc caching.CacheService,
	logger *zap.Logger,
) StorageTreeService {
	return &storageTreeService{
		locations: locations,
		files:     files,
		directory: directory,
		cacheSvc:  cacheSvc,
		logger:    logger,
	}
}

func (s *storageTreeService) GetTree(ctx context.Context, scope models.Scope) ([]*models.TreeNode, error) {
	scope, err := resolveScope(ctx, s.directory, scope)
	if err != nil {
		return nil, err
	}

	// Snapshots are only trusted and written when the generation is known.
	generation, cacheable := int64(0), false
	if s.cacheSvc != nil {
		if generation, err = s.cacheSvc.TreeGeneration(ctx, scope); err != nil {
			s.logger.Warn("tree generation read failed", zap.String("scope", scope.Key()), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	if cacheable {
		cached, err := s.cacheSvc.GetTree(ctx, scope)
		if err != nil {
			s.logger.Warn("tree snapshot read failed", zap.String("scope", scope.Key()), zap.Error(err))
		} else if cached != nil && cached.Generation == generation {
			return cached.Forest, nil
		}
	}

	rows, err := s.locations.ListByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	counts, err := s.files.CountsByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	forest := hierarchy.BuildForest(rows, counts)

	if cacheable {
		snapshot := &models.TreeSnapshot{Generation: generation, Forest: forest}
		if err := s.cacheSvc.SetTree(ctx, scope, snapshot, treeSnapshotTTL); err != nil {
			s.logger.Warn("tree snapshot write failed", zap.String("scope", scope.Key()), zap.Error(err))
		}
	}
	return forest, nil
}

func (s *storageTreeService) ResetSnapshots(ctx context.Context) error {
	if s.cacheSvc == nil {
		return nil
	}
	return s.cacheSvc.InvalidateAllCache(ctx)
}

func (s *storageTreeService) GetFilesIn(ctx context.Context, storageLocationID int64) ([]models.StoredFile, error) {
	if _, err := s.locations.GetByID(ctx, storageLocationID); err != nil {
		return nil, err
	}
	return s.files.ListByLocation(ctx, storageLocationID)
}

func (s *storageTreeService) AncestryOf(ctx context.Context, storageLocationID int64) ([]models.StorageLocation, error) {
	rows, err := s.locations.GetAncestry(ctx, storageLocationID)
	if err != nil {
		return nil, err
	}
	ancestry, err := hierarchy.ResolveAncestry(rows, storageLocationID)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			s.logger.Error("broken storage ancestry", zap.Int64("storage_location_id", storageLocationID), zap.Error(err))
		}
		return nil, err
	}
	return ancestry, nil
}

func (s *storageTreeService) ListScopes(ctx context.Context) ([]models.Scope, error) {
	return s.locations.ListScopes(ctx)
}

func (s *storageTreeService) FolderUsage(ctx context.Context, scope models.Scope) ([]models.FolderUsage, error) {
	return s.locations.ListFolderUsage(ctx, scope)
}

func (s *storageTreeService) VerifyIntegrity(ctx context.Context, scope models.Scope) ([]models.IntegrityIssue, error) {
	rows, err := s.locations.ListByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	issues := hierarchy.FindIntegrityIssues(rows)
	for _, issue := range issues {
		s.logger.Error("storage integrity violation",
			zap.String("scope", scope.Key()),
			zap.Int64("storage_location_id", issue.StorageLocationID),
			zap.String("problem", issue.Problem),
		)
	}
	return issues, nil
}
