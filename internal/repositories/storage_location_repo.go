package repositories

import (
	"context"
	"fmt"

	"docarchive/internal/domain"
	"docarchive/internal/models"

	"github.com/jackc/pgx/v5"
)

type StorageLocationRepository interface {
	// LockScope serializes allocation and structural edits of one scope
	// until the surrounding transaction ends.
	LockScope(ctx context.Context, scope models.Scope) error
	Create(ctx context.Context, loc *models.StorageLocation) error
	GetByID(ctx context.Context, id int64) (*models.StorageLocation, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.StorageLocation, error)
	UpdateCapacity(ctx context.Context, id int64, capacity int) error
	Delete(ctx context.Context, id int64) error
	ListByScope(ctx context.Context, scope models.Scope) ([]models.StorageLocation, error)
	ListScopes(ctx context.Context) ([]models.Scope, error)
	// GetAncestry returns the node and all of its ancestors in one query.
	GetAncestry(ctx context.Context, id int64) ([]models.StorageLocation, error)
	// FindFirstFreeFolder returns the lowest-id folder with spare capacity,
	// locked for update, or nil when there is none.
	FindFirstFreeFolder(ctx context.Context, scope models.Scope) (*models.FolderUsage, error)
	CountByType(ctx context.Context, scope models.Scope, unitType models.UnitType) (int, error)
	CountChildren(ctx context.Context, id int64) (int, error)
	ListUnitNames(ctx context.Context, scope models.Scope, unitType models.UnitType) ([]string, error)
	ListFolderUsage(ctx context.Context, scope models.Scope) ([]models.FolderUsage, error)
}

type storageLocationRepo struct {
	db DBTX
}

func NewStorageLocationRepository(db DBTX) StorageLocationRepository {
	return &storageLocationRepo{db: db}
}

const locationColumns = `storage_location_id, unit_type, unit_name, parent_storage_location_id,
		department_id, sub_department_id, folder_capacity, full_path, created_at`

const scopeFilter = `department_id = $1 AND sub_department_id IS NOT DISTINCT FROM $2`

func scanLocation(row pgx.Row, loc *models.StorageLocation, extra ...interface{}) error {
	dest := []interface{}{
		&loc.ID,
		&loc.UnitType,
		&loc.UnitName,
		&loc.ParentID,
		&loc.DepartmentID,
		&loc.SubDepartmentID,
		&loc.FolderCapacity,
		&loc.FullPath,
		&loc.CreatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *storageLocationRepo) LockScope(ctx context.Context, scope models.Scope) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	_, err := executor(ctx, r.db).Exec(ctx, query, "storage_scope:"+scope.Key())
	if err != nil {
		return fmt.Errorf("lock storage scope %s: %w", scope.Key(), err)
	}
	return nil
}

func (r *storageLocationRepo) Create(ctx context.Context, loc *models.StorageLocation) error {
	query := `
		INSERT INTO storage_locations (unit_type, unit_name, parent_storage_location_id, department_id, sub_department_id, folder_capacity, full_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING storage_location_id, created_at
	`
	err := executor(ctx, r.db).QueryRow(ctx, query,
		loc.UnitType,
		loc.UnitName,
		loc.ParentID,
		loc.DepartmentID,
		loc.SubDepartmentID,
		loc.FolderCapacity,
		loc.FullPath,
	).Scan(&loc.ID, &loc.CreatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return domain.Validation("a unit named %q already exists at this level", loc.UnitName)
		}
		return fmt.Errorf("create storage location: %w", err)
	}
	return nil
}

func (r *storageLocationRepo) GetByID(ctx context.Context, id int64) (*models.StorageLocation, error) {
	query := `SELECT ` + locationColumns + `
		FROM storage_locations
		WHERE storage_location_id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *storageLocationRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.StorageLocation, error) {
	query := `SELECT ` + locationColumns + `
		FROM storage_locations
		WHERE storage_location_id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, query, id)
}

func (r *storageLocationRepo) getOne(ctx context.Context, query string, id int64) (*models.StorageLocation, error) {
	loc := &models.StorageLocation{}
	if err := scanLocation(executor(ctx, r.db).QueryRow(ctx, query, id), loc); err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NotFound("storage location", id)
		}
		return nil, fmt.Errorf("get storage location %d: %w", id, err)
	}
	return loc, nil
}

func (r *storageLocationRepo) UpdateCapacity(ctx context.Context, id int64, capacity int) error {
	query := `
		UPDATE storage_locations
		SET folder_capacity = $1
		WHERE storage_location_id = $2 AND unit_type = 'folder'
	`
	tag, err := executor(ctx, r.db).Exec(ctx, query, capacity, id)
	if err != nil {
		return fmt.Errorf("update folder capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("folder", id)
	}
	return nil
}

func (r *storageLocationRepo) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM storage_locations WHERE storage_location_id = $1`
	tag, err := executor(ctx, r.db).Exec(ctx, query, id)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return domain.New(domain.CodeHasFiles, "storage location %d is still referenced", id)
		}
		return fmt.Errorf("delete storage location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("storage location", id)
	}
	return nil
}

func (r *storageLocationRepo) ListByScope(ctx context.Context, scope models.Scope) ([]models.StorageLocation, error) {
	query := `SELECT ` + locationColumns + `
		FROM storage_locations
		WHERE ` + scopeFilter + `
		ORDER BY storage_location_id ASC
	`
	return r.list(ctx, query, scope.DepartmentID, scope.SubDepartmentID)
}

func (r *storageLocationRepo) GetAncestry(ctx context.Context, id int64) ([]models.StorageLocation, error) {
	query := `
		WITH RECURSIVE ancestry AS (
			SELECT ` + locationColumns + `, 0 AS depth
			FROM storage_locations
			WHERE storage_location_id = $1
			UNION ALL
			SELECT p.storage_location_id, p.unit_type, p.unit_name, p.parent_storage_location_id,
				p.department_id, p.sub_department_id, p.folder_capacity, p.full_path, p.created_at, a.depth + 1
			FROM storage_locations p
			JOIN ancestry a ON p.storage_location_id = a.parent_storage_location_id
			WHERE a.depth < 16
		)
		SELECT ` + locationColumns + `
		FROM ancestry
		ORDER BY depth DESC
	`
	return r.list(ctx, query, id)
}

func (r *storageLocationRepo) list(ctx context.Context, query string, args ...interface{}) ([]models.StorageLocation, error) {
	rows, err := executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list storage locations: %w", err)
	}
	defer rows.Close()

	var locations []models.StorageLocation
	for rows.Next() {
		var loc models.StorageLocation
		if err := scanLocation(rows, &loc); err != nil {
			return nil, fmt.Errorf("scan storage location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage locations: %w", err)
	}
	return locations, nil
}

func (r *storageLocationRepo) ListScopes(ctx context.Context) ([]models.Scope, error) {
	query := `
		SELECT DISTINCT department_id, sub_department_id
		FROM storage_locations
		ORDER BY department_id, sub_department_id NULLS FIRST
	`
	rows, err := executor(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list storage scopes: %w", err)
	}
	defer rows.Close()

	var scopes []models.Scope
	for rows.Next() {
		var s models.Scope
		if err := rows.Scan(&s.DepartmentID, &s.SubDepartmentID); err != nil {
			return nil, fmt.Errorf("scan storage scope: %w", err)
		}
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}

func (r *storageLocationRepo) FindFirstFreeFolder(ctx context.Context, scope models.Scope) (*models.FolderUsage, error) {
	query := `
		SELECT sl.storage_location_id, sl.unit_type, sl.unit_name, sl.parent_storage_location_id,
			sl.department_id, sl.sub_department_id, sl.folder_capacity, sl.full_path, sl.created_at,
			(SELECT COUNT(*) FROM files f WHERE f.storage_location_id = sl.storage_location_id) AS current_files
		FROM storage_locations sl
		WHERE sl.department_id = $1 AND sl.sub_department_id IS NOT DISTINCT FROM $2
			AND sl.unit_type = 'folder'
			AND sl.folder_capacity > (SELECT COUNT(*) FROM files f WHERE f.storage_location_id = sl.storage_location_id)
		ORDER BY sl.storage_location_id ASC
		LIMIT 1
		FOR UPDATE OF sl
	`
	usage := &models.FolderUsage{}
	err := scanLocation(executor(ctx, r.db).QueryRow(ctx, query, scope.DepartmentID, scope.SubDepartmentID), &usage.StorageLocation, &usage.CurrentFiles)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find free folder: %w", err)
	}
	return usage, nil
}

func (r *storageLocationRepo) CountByType(ctx context.Context, scope models.Scope, unitType models.UnitType) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM storage_locations
		WHERE ` + scopeFilter + ` AND unit_type = $3
	`
	var count int
	if err := executor(ctx, r.db).QueryRow(ctx, query, scope.DepartmentID, scope.SubDepartmentID, unitType).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s units: %w", unitType, err)
	}
	return count, nil
}

func (r *storageLocationRepo) CountChildren(ctx context.Context, id int64) (int, error) {
	query := `SELECT COUNT(*) FROM storage_locations WHERE parent_storage_location_id = $1`
	var count int
	if err := executor(ctx, r.db).QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return count, nil
}

func (r *storageLocationRepo) ListUnitNames(ctx context.Context, scope models.Scope, unitType models.UnitType) ([]string, error) {
	query := `
		SELECT unit_name
		FROM storage_locations
		WHERE ` + scopeFilter + ` AND unit_type = $3
	`
	rows, err := executor(ctx, r.db).Query(ctx, query, scope.DepartmentID, scope.SubDepartmentID, unitType)
	if err != nil {
		return nil, fmt.Errorf("list unit names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan unit name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *storageLocationRepo) ListFolderUsage(ctx context.Context, scope models.Scope) ([]models.FolderUsage, error) {
	query := `
		SELECT sl.storage_location_id, sl.unit_type, sl.unit_name, sl.parent_storage_location_id,
			sl.department_id, sl.sub_department_id, sl.folder_capacity, sl.full_path, sl.created_at,
			COUNT(f.file_id) AS current_files
		FROM storage_locations sl
		LEFT JOIN files f ON f.storage_location_id = sl.storage_location_id
		WHERE sl.department_id = $1 AND sl.sub_department_id IS NOT DISTINCT FROM $2
			AND sl.unit_type = 'folder'
		GROUP BY sl.storage_location_id
		ORDER BY sl.storage_location_id ASC
	`
	rows, err := executor(ctx, r.db).Query(ctx, query, scope.DepartmentID, scope.SubDepartmentID)
	if err != nil {
		return nil, fmt.Errorf("list folder usage: %w", err)
	}
	defer rows.Close()

	var usage []models.FolderUsage
	for rows.Next() {
		var u models.FolderUsage
		if err := scanLocation(rows, &u.StorageLocation, &u.CurrentFiles); err != nil {
			return nil, fmt.Errorf("scan folder usage: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
