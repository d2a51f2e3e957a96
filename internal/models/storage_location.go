package models

import (
	"fmt"
	"time"
)

// UnitType is one of the five fixed levels of the physical storage hierarchy.
type UnitType string

const (
	UnitTypeRoom    UnitType = "room"
	UnitTypeCabinet UnitType = "cabinet"
	UnitTypeLayer   UnitType = "layer"
	UnitTypeBox     UnitType = "box"
	UnitTypeFolder  UnitType = "folder"
)

// Scope isolates one storage hierarchy: a department and, optionally, one of
// its sub-departments. A nil SubDepartmentID means department-wide.
type Scope struct {
	DepartmentID    int64  `json:"department_id"`
	SubDepartmentID *int64 `json:"sub_department_id,omitempty"`
}

// Key is a stable string for locks and cache keys.
func (s Scope) Key() string {
	if s.SubDepartmentID == nil {
		return fmt.Sprintf("%d:-", s.DepartmentID)
	}
	return fmt.Sprintf("%d:%d", s.DepartmentID, *s.SubDepartmentID)
}

// Contains reports whether a location belongs to this scope.
func (s Scope) Contains(loc *StorageLocation) bool {
	if loc.DepartmentID != s.DepartmentID {
		return false
	}
	if s.SubDepartmentID == nil || loc.SubDepartmentID == nil {
		return s.SubDepartmentID == nil && loc.SubDepartmentID == nil
	}
	return *s.SubDepartmentID == *loc.SubDepartmentID
}

// StorageLocation is one node of the room > cabinet > layer > box > folder tree.
type StorageLocation struct {
	ID              int64     `json:"storage_location_id" db:"storage_location_id"`
	UnitType        UnitType  `json:"unit_type" db:"unit_type"`
	UnitName        string    `json:"unit_name" db:"unit_name"`
	ParentID        *int64    `json:"parent_storage_location_id" db:"parent_storage_location_id"`
	DepartmentID    int64     `json:"department_id" db:"department_id"`
	SubDepartmentID *int64    `json:"sub_department_id" db:"sub_department_id"`
	FolderCapacity  *int      `json:"folder_capacity" db:"folder_capacity"`
	FullPath        string    `json:"full_path" db:"full_path"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Scope returns the scope the location belongs to.
func (l *StorageLocation) Scope() Scope {
	return Scope{DepartmentID: l.DepartmentID, SubDepartmentID: l.SubDepartmentID}
}

// FolderUsage is a folder together with its derived occupancy.
type FolderUsage struct {
	StorageLocation
	CurrentFiles int `json:"current_files"`
}

// HasSpace reports whether at least one more file fits.
func (f *FolderUsage) HasSpace() bool {
	return f.FolderCapacity != nil && *f.FolderCapacity > f.CurrentFiles
}

// TreeNode is the read model handed to renderers.
type TreeNode struct {
	ID             int64       `json:"storage_location_id"`
	UnitType       UnitType    `json:"unit_type"`
	UnitName       string      `json:"unit_name"`
	ParentID       *int64      `json:"parent_storage_location_id,omitempty"`
	FullPath       string      `json:"full_path"`
	FolderCapacity *int        `json:"folder_capacity,omitempty"`
	CurrentFiles   int         `json:"current_files"`
	Children       []*TreeNode `json:"children"`
}

// TreeSnapshot is a cached forest tagged with the scope generation it was
// built from. A snapshot older than the current generation is stale.
type TreeSnapshot struct {
	Generation int64       `json:"generation"`
	Forest     []*TreeNode `json:"forest"`
}

// Allocation is the outcome of a successful capacity search.
type Allocation struct {
	StorageLocationID int64  `json:"storage_location_id"`
	FullPath          string `json:"full_path"`
	FolderCapacity    int    `json:"folder_capacity"`
	CurrentFiles      int    `json:"current_files"`
	Provisioned       bool   `json:"provisioned"`
}

// AddUnitRequest is the administrator payload for creating a single node.
type AddUnitRequest struct {
	DepartmentID    int64  `json:"department_id"`
	SubDepartmentID *int64 `json:"sub_department_id"`
	ParentID        *int64 `json:"parent_id"`
	UnitType        string `json:"unit_type"`
	UnitName        string `json:"unit_name"`
	FolderCapacity  *int   `json:"folder_capacity"`
}

// Scope returns the request scope.
func (r *AddUnitRequest) Scope() Scope {
	return Scope{DepartmentID: r.DepartmentID, SubDepartmentID: r.SubDepartmentID}
}

// IntegrityIssue describes one structural violation found in a stored tree.
type IntegrityIssue struct {
	StorageLocationID int64  `json:"storage_location_id"`
	Problem           string `json:"problem"`
}
