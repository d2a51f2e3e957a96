package repositories

import (
	"context"
	"fmt"

	"docarchive/internal/domain"
	"docarchive/internal/models"
)

// FileRepository exposes the slice of the file table the storage core owns:
// which folder a file sits in.
type FileRepository interface {
	GetByID(ctx context.Context, id int64) (*models.StoredFile, error)
	CountFilesIn(ctx context.Context, storageLocationID int64) (int, error)
	CountsByScope(ctx context.Context, scope models.Scope) (map[int64]int, error)
	SetStorageLocation(ctx context.Context, fileID int64, storageLocationID *int64) error
	ListByLocation(ctx context.Context, storageLocationID int64) ([]models.StoredFile, error)
}

type fileRepo struct {
	db DBTX
}

func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) GetByID(ctx context.Context, id int64) (*models.StoredFile, error) {
	query := `
		SELECT file_id, file_name, storage_location_id
		FROM files
		WHERE file_id = $1
	`
	file := &models.StoredFile{}
	err := executor(ctx, r.db).QueryRow(ctx, query, id).Scan(&file.ID, &file.FileName, &file.StorageLocationID)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NotFound("file", id)
		}
		return nil, fmt.Errorf("get file %d: %w", id, err)
	}
	return file, nil
}

func (r *fileRepo) CountFilesIn(ctx context.Context, storageLocationID int64) (int, error) {
	query := `SELECT COUNT(*) FROM files WHERE storage_location_id = $1`
	var count int
	if err := executor(ctx, r.db).QueryRow(ctx, query, storageLocationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count files in %d: %w", storageLocationID, err)
	}
	return count, nil
}

// CountsByScope returns file counts keyed by storage location for every
// occupied location of the scope.
func (r *fileRepo) CountsByScope(ctx context.Context, scope models.Scope) (map[int64]int, error) {
	query := `
		SELECT f.storage_location_id, COUNT(*)
		FROM files f
		JOIN storage_locations sl ON sl.storage_location_id = f.storage_location_id
		WHERE sl.department_id = $1 AND sl.sub_department_id IS NOT DISTINCT FROM $2
		GROUP BY f.storage_location_id
	`
	rows, err := executor(ctx, r.db).Query(ctx, query, scope.DepartmentID, scope.SubDepartmentID)
	if err != nil {
		return nil, fmt.Errorf("count files by scope: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan file count: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// SetStorageLocation points a file at a folder, or detaches it when
// storageLocationID is nil.
func (r *fileRepo) SetStorageLocation(ctx context.Context, fileID int64, storageLocationID *int64) error {
	query := `UPDATE files SET storage_location_id = $1 WHERE file_id = $2`
	tag, err := executor(ctx, r.db).Exec(ctx, query, storageLocationID, fileID)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return domain.New(domain.CodeNotFound, "storage location for file %d not found", fileID)
		}
		return fmt.Errorf("set storage location of file %d: %w", fileID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("file", fileID)
	}
	return nil
}

func (r *fileRepo) ListByLocation(ctx context.Context, storageLocationID int64) ([]models.StoredFile, error) {
	query := `
		SELECT file_id, file_name, storage_location_id
		FROM files
		WHERE storage_location_id = $1
		ORDER BY file_id ASC
	`
	rows, err := executor(ctx, r.db).Query(ctx, query, storageLocationID)
	if err != nil {
		return nil, fmt.Errorf("list files in %d: %w", storageLocationID, err)
	}
	defer rows.Close()

	files := []models.StoredFile{}
	for rows.Next() {
		var f models.StoredFile
		if err := rows.Scan(&f.ID, &f.FileName, &f.StorageLocationID); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
