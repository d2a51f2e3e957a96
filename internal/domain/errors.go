package domain

import (
	"fmt"
	"net/http"
)

// HTTPError is implemented by errors that know which HTTP status they map to.
type HTTPError interface {
	error
	StatusCode() int
}

// Code identifies a storage failure class.
type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeInvalidUnitType        Code = "INVALID_UNIT_TYPE"
	CodeInvalidHierarchy       Code = "INVALID_HIERARCHY"
	CodeInvalidCapacity        Code = "INVALID_CAPACITY"
	CodeInvalidScope           Code = "INVALID_SCOPE"
	CodeNoStorageProvisioned   Code = "NO_STORAGE_PROVISIONED"
	CodeStorageFull            Code = "STORAGE_FULL"
	CodeHasChildren            Code = "HAS_CHILDREN"
	CodeHasFiles               Code = "HAS_FILES"
	CodeCapacityBelowOccupancy Code = "CAPACITY_BELOW_OCCUPANCY"
	CodeNotFound               Code = "NOT_FOUND"
	CodeIntegrity              Code = "INTEGRITY_ERROR"
	CodeFolderCreationFailed   Code = "FOLDER_CREATION_FAILED"
	CodeCollaborator           Code = "COLLABORATOR_FAILURE"
)

// StorageError is the single error type returned across the storage core.
// Compare with errors.Is against the sentinels below; the message is ignored
// for matching.
type StorageError struct {
	Code    Code
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches any *StorageError carrying the same code.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	return ok && t.Code == e.Code
}

// StatusCode implements HTTPError.
func (e *StorageError) StatusCode() int {
	switch e.Code {
	case CodeValidation, CodeInvalidUnitType, CodeInvalidCapacity, CodeInvalidScope:
		return http.StatusBadRequest
	case CodeInvalidHierarchy:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNoStorageProvisioned, CodeStorageFull, CodeHasChildren, CodeHasFiles, CodeCapacityBelowOccupancy:
		return http.StatusConflict
	case CodeFolderCreationFailed, CodeCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsUserError reports whether the failure is the caller's to fix, as opposed
// to an integrity or collaborator failure that must abort the transaction.
func (e *StorageError) IsUserError() bool {
	return e.Code != CodeIntegrity && e.Code != CodeFolderCreationFailed && e.Code != CodeCollaborator
}

// Sentinels for errors.Is.
var (
	ErrValidation             = &StorageError{Code: CodeValidation}
	ErrInvalidUnitType        = &StorageError{Code: CodeInvalidUnitType}
	ErrInvalidHierarchy       = &StorageError{Code: CodeInvalidHierarchy}
	ErrInvalidCapacity        = &StorageError{Code: CodeInvalidCapacity}
	ErrInvalidScope           = &StorageError{Code: CodeInvalidScope}
	ErrNoStorageProvisioned   = &StorageError{Code: CodeNoStorageProvisioned}
	ErrStorageFull            = &StorageError{Code: CodeStorageFull}
	ErrHasChildren            = &StorageError{Code: CodeHasChildren}
	ErrHasFiles               = &StorageError{Code: CodeHasFiles}
	ErrCapacityBelowOccupancy = &StorageError{Code: CodeCapacityBelowOccupancy}
	ErrNotFound               = &StorageError{Code: CodeNotFound}
	ErrIntegrity              = &StorageError{Code: CodeIntegrity}
	ErrFolderCreationFailed   = &StorageError{Code: CodeFolderCreationFailed}
	ErrCollaborator           = &StorageError{Code: CodeCollaborator}
)

// New builds a StorageError with a formatted message.
func New(code Code, format string, args ...interface{}) *StorageError {
	return &StorageError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a StorageError around a cause.
func Wrap(code Code, err error, format string, args ...interface{}) *StorageError {
	return &StorageError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *StorageError {
	return New(CodeValidation, format, args...)
}

func NotFound(resource string, id int64) *StorageError {
	return New(CodeNotFound, "%s %d not found", resource, id)
}

// InvalidHierarchy renders the containment message shown to administrators.
func InvalidHierarchy(parentType, expectedType string) *StorageError {
	if expectedType == "" {
		return New(CodeInvalidHierarchy, "A %s cannot contain any units", parentType)
	}
	return New(CodeInvalidHierarchy, "A %s can only contain %s units", parentType, expectedType)
}

func Integrity(format string, args ...interface{}) *StorageError {
	return New(CodeIntegrity, format, args...)
}
