package domain

import (
	"context"
)

const (
	MinVlanID = 1
	MaxVlanID = 4094
)

type VlanID struct {
	VlanID int  `json:"vlan_id"`
	Used   bool `json:"vlan_used"`
}

type VlanBinding struct {
	VlanID    int    `json:"vlan_id"`
	VlanName  string `json:"vlan_name"`
	NetworkID string `json:"network_id"`
}

type PortProfile struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	VlanID int    `json:"vlan_id"`
	QoS    string `json:"qos"`
}

type PortProfileBinding struct {
	TenantID      string `json:"tenant_id"`
	PortID        string `json:"port_id"`
	PortProfileID string `json:"portprofile_id"`
	Default       bool   `json:"default"`
}

// Update types carry only the fields a caller wants changed; nil means keep.

type VlanBindingUpdate struct {
	VlanID   *int    `json:"vlan_id,omitempty"`
	VlanName *string `json:"vlan_name,omitempty"`
}

type PortProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	VlanID *int    `json:"vlan_id,omitempty"`
	QoS    *string `json:"qos,omitempty"`
}

type PortProfileBindingUpdate struct {
	TenantID *string `json:"tenant_id,omitempty"`
	PortID   *string `json:"port_id,omitempty"`
	Default  *bool   `json:"default,omitempty"`
}

// ValidateVlanRange checks that [start, end] is a non-empty range of usable
// 802.1Q VLAN IDs.
// IsValidVlanID reports whether id lies in the usable 802.1Q range.
func IsValidVlanID(id int) bool {
	return id >= MinVlanID && id <= MaxVlanID
}

func ValidateVlanRange(start, end int) error {
	if start < MinVlanID || end > MaxVlanID || start > end {
		return InvalidVlanRange(start, end)
	}
	return nil
}

type VlanRepository interface {
	InitializeVlanIDs(ctx context.Context, start, end int) error
	ListVlanIDs(ctx context.Context) ([]*VlanID, error)
	IsVlanIDUsed(ctx context.Context, vlanID int) (bool, error)
	ReleaseVlanID(ctx context.Context, vlanID int) error
	DeleteVlanID(ctx context.Context, vlanID int) error
	ReserveVlanID(ctx context.Context) (int, error)

	AddVlanBinding(ctx context.Context, vlanID int, vlanName, networkID string) (*VlanBinding, error)
	GetVlanBinding(ctx context.Context, networkID string) (*VlanBinding, error)
	ListVlanBindings(ctx context.Context) ([]*VlanBinding, error)
	RemoveVlanBinding(ctx context.Context, networkID string) error
	UpdateVlanBinding(ctx context.Context, networkID string, update VlanBindingUpdate) (*VlanBinding, error)
}

type PortProfileRepository interface {
	AddPortProfile(ctx context.Context, name string, vlanID int, qos string) (*PortProfile, error)
	GetPortProfile(ctx context.Context, uuid string) (*PortProfile, error)
	ListPortProfiles(ctx context.Context) ([]*PortProfile, error)
	RemovePortProfile(ctx context.Context, uuid string) error
	UpdatePortProfile(ctx context.Context, uuid string, update PortProfileUpdate) (*PortProfile, error)

	AddPortProfileBinding(ctx context.Context, tenantID, portID, portProfileID string, isDefault bool) (*PortProfileBinding, error)
	// GetPortProfileBinding returns nil, nil when no binding exists.
	GetPortProfileBinding(ctx context.Context, portProfileID string) (*PortProfileBinding, error)
	ListPortProfileBindings(ctx context.Context) ([]*PortProfileBinding, error)
	RemovePortProfileBinding(ctx context.Context, portProfileID, portID string) error
	UpdatePortProfileBinding(ctx context.Context, portProfileID string, update PortProfileBindingUpdate) (*PortProfileBinding, error)
}

type L2NetworkRepository interface {
	VlanRepository
	PortProfileRepository
}
