package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Caller names for allocation policies
const (
	CallerAdmin  = "admin"
	CallerUpload = "upload"
)

// StoragePolicy represents the storage policy file
type StoragePolicy struct {
	Allocation map[string]AllocationPolicy `toml:"allocation"`
	Admin      AdminPolicy                 `toml:"admin"`
}

// AllocationPolicy controls what the allocator may do for one call site
type AllocationPolicy struct {
	AutoProvision         bool `toml:"auto_provision"`
	DefaultFolderCapacity int  `toml:"default_folder_capacity"`
	ScaleWithUsers        bool `toml:"scale_with_users"`
	PerUserCapacity       int  `toml:"per_user_capacity"`
}

// AdminPolicy settles the administrator edge cases
type AdminPolicy struct {
	AllowCapacityBelowOccupancy bool `toml:"allow_capacity_below_occupancy"`
	BlockDeleteWithFiles        bool `toml:"block_delete_with_files"`
}

// FolderCapacity returns the capacity of an auto-provisioned folder for a
// scope with the given number of users.
func (p AllocationPolicy) FolderCapacity(users int) int {
	capacity := p.DefaultFolderCapacity
	if p.ScaleWithUsers && users*p.PerUserCapacity > capacity {
		capacity = users * p.PerUserCapacity
	}
	return capacity
}

// DefaultStoragePolicy is used when no policy file is configured.
func DefaultStoragePolicy() *StoragePolicy {
	return &StoragePolicy{
		Allocation: map[string]AllocationPolicy{
			CallerAdmin: {
				AutoProvision:         false,
				DefaultFolderCapacity: 100,
			},
			CallerUpload: {
				AutoProvision:         true,
				DefaultFolderCapacity: 100,
				ScaleWithUsers:        true,
				PerUserCapacity:       10,
			},
		},
		Admin: AdminPolicy{
			AllowCapacityBelowOccupancy: false,
			BlockDeleteWithFiles:        true,
		},
	}
}

// For returns the policy of a caller. Unknown callers never auto-provision.
func (p *StoragePolicy) For(caller string) AllocationPolicy {
	if ap, ok := p.Allocation[caller]; ok {
		return ap
	}
	return AllocationPolicy{DefaultFolderCapacity: 100}
}

// LoadStoragePolicy loads the policy from a TOML file over the defaults.
func LoadStoragePolicy(filename string) (*StoragePolicy, error) {
	policy := DefaultStoragePolicy()
	if filename == "" {
		return policy, nil
	}
	if _, err := toml.DecodeFile(filename, policy); err != nil {
		return nil, fmt.Errorf("failed to load storage policy file: %w", err)
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

func (p *StoragePolicy) validate() error {
	for caller, ap := range p.Allocation {
		if ap.DefaultFolderCapacity <= 0 {
			return fmt.Errorf("allocation.%s: default_folder_capacity must be positive", caller)
		}
		if ap.ScaleWithUsers && ap.PerUserCapacity <= 0 {
			return fmt.Errorf("allocation.%s: per_user_capacity must be positive when scale_with_users is set", caller)
		}
	}
	return nil
}
