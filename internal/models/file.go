package models

// StoredFile is the slice of an archive file record the storage core reads
// and writes. The rest of the file lifecycle lives elsewhere.
type StoredFile struct {
	ID                int64  `json:"file_id" db:"file_id"`
	FileName          string `json:"file_name" db:"file_name"`
	StorageLocationID *int64 `json:"storage_location_id,omitempty" db:"storage_location_id"`
}

// Department and SubDepartment carry the names used for path materialization.
type Department struct {
	ID   int64  `json:"department_id" db:"department_id"`
	Name string `json:"name" db:"name"`
}

type SubDepartment struct {
	ID           int64  `json:"sub_department_id" db:"sub_department_id"`
	DepartmentID int64  `json:"department_id" db:"department_id"`
	Name         string `json:"name" db:"name"`
}

// ScopeNames are the display names of a scope.
type ScopeNames struct {
	DepartmentName    string
	SubDepartmentName *string
}
