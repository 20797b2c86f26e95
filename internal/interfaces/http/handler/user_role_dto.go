package handler

import (
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
)

// ListQuery is the common paging and sorting query of list endpoints
type ListQuery struct {
	Search   string `form:"search" binding:"max=100"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,max=50"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (q ListQuery) toFilter() shared.Filter {
	return shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
		Search:   q.Search,
	}.Normalize()
}

// =====================
// User Request DTOs
// =====================

// CreateUserRequest represents the request body for creating a user
// @Name HandlerCreateUserRequest
type CreateUserRequest struct {
	Username    string      `json:"username" binding:"required,min=3,max=100"`
	Password    string      `json:"password" binding:"required,min=8,max=128"`
	Email       string      `json:"email" binding:"omitempty,email,max=200"`
	Phone       string      `json:"phone" binding:"omitempty,max=20"`
	DisplayName string      `json:"display_name" binding:"omitempty,max=200"`
	RoleIDs     []uuid.UUID `json:"role_ids" binding:"max=20"`
	// Pending users must be activated before they can log in
	Pending bool `json:"pending"`
}

// UpdateUserRequest represents the request body for updating a user
// @Name HandlerUpdateUserRequest
type UpdateUserRequest struct {
	Email       *string `json:"email" binding:"omitempty,email,max=200"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=200"`
}

// UserListQuery filters the user listing
type UserListQuery struct {
	ListQuery
	Status string     `form:"status" binding:"omitempty,oneof=pending active locked deactivated"`
	RoleID string `form:"role_id" binding:"omitempty,uuid"`
}

// ResetPasswordRequest represents the request body for resetting a user's password
// @Name HandlerResetPasswordRequest
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// AssignRolesRequest replaces the roles of a user
type AssignRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids" binding:"required,max=20"`
}

// =====================
// Role Request DTOs
// =====================

// CreateRoleRequest represents the request body for creating a role
type CreateRoleRequest struct {
	Code        string   `json:"code" binding:"required,min=2,max=50"`
	Name        string   `json:"name" binding:"required,min=2,max=100"`
	Description string   `json:"description" binding:"max=500"`
	Permissions []string `json:"permissions" binding:"max=200"`
}

// UpdateRoleRequest represents the request body for updating a role
type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// SetPermissionsRequest replaces the permission set of a role
type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required,max=200"`
}
