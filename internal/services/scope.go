package services

import (
	"context"

	"docarchive/internal/domain"
	"docarchive/internal/models"
	"docarchive/internal/repositories"
)

// resolveScope rejects a scope that names neither a department nor a
// sub-department and fills in the department of a bare sub-department.
func resolveScope(ctx context.Context, directory repositories.DirectoryRepository, scope models.Scope) (models.Scope, error) {
	if scope.SubDepartmentID != nil && *scope.SubDepartmentID <= 0 {
		return scope, domain.New(domain.CodeInvalidScope, "sub_department_id must be positive")
	}
	if scope.DepartmentID > 0 {
		return scope, nil
	}
	if scope.SubDepartmentID == nil {
		return scope, domain.New(domain.CodeInvalidScope, "a department or sub-department is required")
	}
	departmentID, err := directory.GetDepartmentOfSubDepartment(ctx, *scope.SubDepartmentID)
	if err != nil {
		return scope, err
	}
	scope.DepartmentID = departmentID
	return scope, nil
}
