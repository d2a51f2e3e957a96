package repositories

import (
	"context"
	"fmt"

	"docarchive/internal/domain"
	"docarchive/internal/models"
)

// DirectoryRepository reads the department directory. The storage core never
// writes to it.
type DirectoryRepository interface {
	GetScopeNames(ctx context.Context, scope models.Scope) (*models.ScopeNames, error)
	GetDepartmentOfSubDepartment(ctx context.Context, subDepartmentID int64) (int64, error)
	CountUsers(ctx context.Context, scope models.Scope) (int, error)
}

type directoryRepo struct {
	db DBTX
}

func NewDirectoryRepository(db DBTX) DirectoryRepository {
	return &directoryRepo{db: db}
}

func (r *directoryRepo) GetScopeNames(ctx context.Context, scope models.Scope) (*models.ScopeNames, error) {
	names := &models.ScopeNames{}

	query := `SELECT name FROM departments WHERE department_id = $1`
	if err := executor(ctx, r.db).QueryRow(ctx, query, scope.DepartmentID).Scan(&names.DepartmentName); err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NotFound("department", scope.DepartmentID)
		}
		return nil, fmt.Errorf("get department name: %w", err)
	}

	if scope.SubDepartmentID == nil {
		return names, nil
	}

	query = `SELECT name FROM sub_departments WHERE sub_department_id = $1 AND department_id = $2`
	var subName string
	err := executor(ctx, r.db).QueryRow(ctx, query, *scope.SubDepartmentID, scope.DepartmentID).Scan(&subName)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.New(domain.CodeInvalidScope, "sub-department %d does not belong to department %d",
				*scope.SubDepartmentID, scope.DepartmentID)
		}
		return nil, fmt.Errorf("get sub-department name: %w", err)
	}
	names.SubDepartmentName = &subName
	return names, nil
}

func (r *directoryRepo) GetDepartmentOfSubDepartment(ctx context.Context, subDepartmentID int64) (int64, error) {
	query := `SELECT department_id FROM sub_departments WHERE sub_department_id = $1`
	var departmentID int64
	if err := executor(ctx, r.db).QueryRow(ctx, query, subDepartmentID).Scan(&departmentID); err != nil {
		if IsPgNoRowsError(err) {
			return 0, domain.NotFound("sub-department", subDepartmentID)
		}
		return 0, fmt.Errorf("get department of sub-department: %w", err)
	}
	return departmentID, nil
}

// CountUsers counts members of the scope. A department-wide scope counts
// every user of the department.
func (r *directoryRepo) CountUsers(ctx context.Context, scope models.Scope) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM users
		WHERE department_id = $1 AND ($2::bigint IS NULL OR sub_department_id = $2)
	`
	var count int
	if err := executor(ctx, r.db).QueryRow(ctx, query, scope.DepartmentID, scope.SubDepartmentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
