package jobs

import (
	"context"
	"errors"
	"fmt"

	"docarchive/internal/models"
	"docarchive/internal/services"

	"go.uber.org/zap"
)

// StorageMonitor reports folders close to capacity and structural damage in
// stored trees. It only reads the hierarchy; findings go to the ledger.
type StorageMonitor struct {
	tree         services.StorageTreeService
	txLog        services.TransactionLogService
	warningRatio float64
	logger       *zap.Logger
}

// CapacityWarning is one folder at or above the warning ratio.
type CapacityWarning struct {
	Scope             models.Scope
	StorageLocationID int64
	FullPath          string
	FolderCapacity    int
	CurrentFiles      int
}

func NewStorageMonitor(tree services.StorageTreeService, txLog services.TransactionLogService, warningRatio float64, logger *zap.Logger) *StorageMonitor {
	if warningRatio <= 0 || warningRatio > 1 {
		warningRatio = 0.9
	}
	return &StorageMonitor{
		tree:         tree,
		txLog:        txLog,
		warningRatio: warningRatio,
		logger:       logger,
	}
}

// CheckCapacity lists the folders of scope whose occupancy reached the ratio.
func (m *StorageMonitor) CheckCapacity(ctx context.Context, scope models.Scope) ([]CapacityWarning, error) {
	usage, err := m.tree.FolderUsage(ctx, scope)
	if err != nil {
		return nil, err
	}

	var warnings []CapacityWarning
	for _, folder := range usage {
		if folder.FolderCapacity == nil || *folder.FolderCapacity <= 0 {
			continue
		}
		if float64(folder.CurrentFiles) >= m.warningRatio*float64(*folder.FolderCapacity) {
			warnings = append(warnings, CapacityWarning{
				Scope:             scope,
				StorageLocationID: folder.ID,
				FullPath:          folder.FullPath,
				FolderCapacity:    *folder.FolderCapacity,
				CurrentFiles:      folder.CurrentFiles,
			})
		}
	}
	return warnings, nil
}

// RunOccupancyReport checks every scope that holds storage. A failing scope
// does not stop the others.
func (m *StorageMonitor) RunOccupancyReport(ctx context.Context) error {
	scopes, err := m.tree.ListScopes(ctx)
	if err != nil {
		m.logger.Error("failed to list storage scopes", zap.Error(err))
		return err
	}

	var errs []error
	total := 0
	for _, scope := range scopes {
		warnings, err := m.CheckCapacity(ctx, scope)
		if err != nil {
			m.logger.Error("failed to check folder occupancy", zap.String("scope", scope.Key()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		for _, w := range warnings {
			m.logger.Warn("folder near capacity",
				zap.String("scope", scope.Key()),
				zap.Int64("storage_location_id", w.StorageLocationID),
				zap.String("full_path", w.FullPath),
				zap.Int("current_files", w.CurrentFiles),
				zap.Int("folder_capacity", w.FolderCapacity))
			m.txLog.LogTransaction(ctx, nil, models.OutcomeSuccess, models.OperationCapacityWarning,
				fmt.Sprintf("Folder %s holds %d of %d files", w.FullPath, w.CurrentFiles, w.FolderCapacity))
		}
		total += len(warnings)
	}

	m.logger.Info("folder occupancy report completed", zap.Int("scopes", len(scopes)), zap.Int("warnings", total))
	return errors.Join(errs...)
}

// RunIntegrityCheck verifies every stored tree and records each violation.
func (m *StorageMonitor) RunIntegrityCheck(ctx context.Context) error {
	scopes, err := m.tree.ListScopes(ctx)
	if err != nil {
		m.logger.Error("failed to list storage scopes", zap.Error(err))
		return err
	}

	var errs []error
	total := 0
	for _, scope := range scopes {
		issues, err := m.tree.VerifyIntegrity(ctx, scope)
		if err != nil {
			m.logger.Error("failed to verify storage tree", zap.String("scope", scope.Key()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		for _, issue := range issues {
			m.txLog.LogTransaction(ctx, nil, models.OutcomeFailed, models.OperationIntegrityFailure,
				fmt.Sprintf("Storage location %d in scope %s: %s", issue.StorageLocationID, scope.Key(), issue.Problem))
		}
		total += len(issues)
	}

	if total > 0 {
		m.logger.Error("storage integrity check found violations", zap.Int("issues", total))
	} else {
		m.logger.Info("storage integrity check passed", zap.Int("scopes", len(scopes)))
	}
	return errors.Join(errs...)
}
