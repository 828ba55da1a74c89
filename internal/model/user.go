package model

import "time"

// Role is a coarse permission bundle.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Permission is a single grant checked by the API layer.
type Permission string

const (
	PermView        Permission = "view"
	PermAdd         Permission = "add"
	PermEdit        Permission = "edit"
	PermDelete      Permission = "delete"
	PermManageTypes Permission = "manage_types"
	PermManageUsers Permission = "manage_users"
)

// User is one entry of the users document, keyed by username.
type User struct {
	Username    string       `json:"username"`
	Password    string       `json:"password,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	FullName    string       `json:"full_name,omitempty"`
	Email       string       `json:"email,omitempty"`
	Department  string       `json:"department,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Privileged reports whether the user's changes bypass review.
func (u User) Privileged() bool {
	return u.Role == RoleAdmin
}

// roleDefaults are granted on top of a user's explicit permissions.
var roleDefaults = map[Role][]Permission{
	RoleEditor: {PermView, PermAdd, PermEdit},
	RoleViewer: {PermView},
}

// Can reports whether the user holds p. Admins hold every permission.
func (u User) Can(p Permission) bool {
	if u.Privileged() {
		return true
	}
	for _, granted := range roleDefaults[u.Role] {
		if granted == p {
			return true
		}
	}
	for _, granted := range u.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}
