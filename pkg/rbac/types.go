package rbac

import (
	"fmt"
	"time"
)

// Resource represents a resource type governed by the policy engine
type Resource string

const (
	ResourceUser          Resource = "user"
	ResourceAccount       Resource = "account"
	ResourceAccountMember Resource = "account_member"
	ResourceDestination   Resource = "destination"
	ResourceLog           Resource = "log"
	ResourceRole          Resource = "role"
)

// Action represents an operation on a resource
type Action string

const (
	ActionList     Action = "list"
	ActionCreate   Action = "create"
	ActionRetrieve Action = "retrieve"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// RoleID identifies one of the built-in account roles
type RoleID int64

const (
	RoleAdmin      RoleID = 1
	RoleNormalUser RoleID = 2
)

// Valid reports whether r is a known role
func (r RoleID) Valid() bool {
	return r == RoleAdmin || r == RoleNormalUser
}

// String returns the seeded role name
func (r RoleID) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleNormalUser:
		return "Normal User"
	default:
		return fmt.Sprintf("RoleID(%d)", int64(r))
	}
}

// BuiltInRoles lists the roles seeded at initialization, in id order
var BuiltInRoles = []RoleID{RoleAdmin, RoleNormalUser}

// Role is a persisted role row
type Role struct {
	ID        RoleID    `json:"id"`
	Name      string    `json:"role_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership binds the principal to one account with one role
type Membership struct {
	AccountID int64
	RoleID    RoleID
}

// Target identifies the resource an operation acts on, when there is one
type Target struct {
	AccountID int64
	UserID    int64
}
