package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionEntry is one row of the custody/activity ledger written for
// every storage mutation, successful or not.
type TransactionEntry struct {
	ID            uuid.UUID `json:"transaction_id" db:"transaction_id"`
	ActorID       *int64    `json:"actor_id" db:"actor_id"`
	Status        string    `json:"status" db:"status"`
	OperationType string    `json:"operation_type" db:"operation_type"`
	Message       string    `json:"message" db:"message"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Outcome values
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Operation types written by the storage core
const (
	OperationAddUnit          = "add_storage_unit"
	OperationEditCapacity     = "edit_folder_capacity"
	OperationDeleteUnit       = "delete_storage_unit"
	OperationRemoveFile       = "remove_file_from_location"
	OperationAutoProvision    = "auto_provision_storage"
	OperationAllocate         = "allocate_storage"
	OperationCapacityWarning  = "folder_capacity_warning"
	OperationIntegrityFailure = "storage_integrity_failure"
)

// TransactionFilters narrows ledger listings.
type TransactionFilters struct {
	OperationType *string    `json:"operation_type"`
	Status        *string    `json:"status"`
	ActorID       *int64     `json:"actor_id"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	Limit         int        `json:"limit"`
	Offset        int        `json:"offset"`
}
