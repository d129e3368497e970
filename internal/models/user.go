package models

import (
	"time"
)

// Role represents operator roles in the dashboard
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleDispatcher Role = "dispatcher"
	RoleViewer     Role = "viewer"
)

// Permissions checked by the HTTP layer.
const (
	PermViewFleet     = "view_fleet"
	PermDispatch      = "dispatch"
	PermManageDetours = "manage_detours"
	PermChat          = "chat"
)

// Operator is a person allowed to use the dashboard
type Operator struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	Operator     Operator `json:"operator"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleDispatcher, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if a role has permission for a specific action
func (r Role) HasPermission(action string) bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	case RoleDispatcher:
		return action == PermViewFleet || action == PermDispatch || action == PermChat
	case RoleViewer:
		return action == PermViewFleet
	default:
		return false
	}
}

// HasPermission checks if an operator has permission for a specific action
func (o *Operator) HasPermission(action string) bool {
	return o.Role.HasPermission(action)
}
