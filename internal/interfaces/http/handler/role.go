package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/identity"
	"github.com/mdfe/backend/internal/domain/shared"
)

// RoleService is the part of identity.RoleService the handler needs
type RoleService interface {
	Create(ctx context.Context, input identity.CreateRoleInput) (*identity.RoleDTO, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[identity.RoleDTO], error)
	Update(ctx context.Context, input identity.UpdateRoleInput) (*identity.RoleDTO, error)
	SetPermissions(ctx context.Context, tenantID, id uuid.UUID, codes []string) (*identity.RoleDTO, error)
	Enable(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error)
	Disable(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Permissions() []identity.PermissionDTO
}

// RoleHandler handles role management HTTP requests
type RoleHandler struct {
	BaseHandler
	roleService RoleService
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roleService RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

// Create godoc
// @ID           createRole
// @Summary      Create a custom role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        request body CreateRoleRequest true "Role"
// @Success      201 {object} APIResponse[identity.RoleDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	actorID, ok := h.userID(c)
	if !ok {
		return
	}
	var req CreateRoleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	role, err := h.roleService.Create(c.Request.Context(), identity.CreateRoleInput{
		TenantID:    tenantID,
		CreatedBy:   actorID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, role)
}

// GetByID godoc
// @ID           getRole
// @Summary      Get role by ID
// @Tags         roles
// @Produce      json
// @Param        id path string true "Role ID" format(uuid)
// @Success      200 {object} APIResponse[identity.RoleDTO]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /roles/{id} [get]
func (h *RoleHandler) GetByID(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	role, err := h.roleService.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, role)
}

// List godoc
// @ID           listRoles
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Param        search    query string false "Code or name"
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]identity.RoleDTO]
// @Security     BearerAuth
// @Router       /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q ListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.roleService.List(c.Request.Context(), tenantID, q.toFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Update godoc
// @ID           updateRole
// @Summary      Rename a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        id      path string            true "Role ID" format(uuid)
// @Param        request body UpdateRoleRequest true "Name and description"
// @Success      200 {object} APIResponse[identity.RoleDTO]
// @Security     BearerAuth
// @Router       /roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	role, err := h.roleService.Update(c.Request.Context(), identity.UpdateRoleInput{
		TenantID:    tenantID,
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, role)
}

// SetPermissions godoc
// @ID           setRolePermissions
// @Summary      Replace the permissions of a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        id      path string                true "Role ID" format(uuid)
// @Param        request body SetPermissionsRequest true "Permission codes (resource:action)"
// @Success      200 {object} APIResponse[identity.RoleDTO]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /roles/{id}/permissions [put]
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req SetPermissionsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	role, err := h.roleService.SetPermissions(c.Request.Context(), tenantID, id, req.Permissions)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, role)
}

// Enable godoc
// @ID           enableRole
// @Summary      Enable a role
// @Tags         roles
// @Produce      json
// @Param        id path string true "Role ID" format(uuid)
// @Success      200 {object} APIResponse[identity.RoleDTO]
// @Security     BearerAuth
// @Router       /roles/{id}/enable [post]
func (h *RoleHandler) Enable(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error) {
		return h.roleService.Enable(ctx, tenantID, id)
	})
}

// Disable godoc
// @ID           disableRole
// @Summary      Disable a role
// @Tags         roles
// @Produce      json
// @Param        id path string true "Role ID" format(uuid)
// @Success      200 {object} APIResponse[identity.RoleDTO]
// @Security     BearerAuth
// @Router       /roles/{id}/disable [post]
func (h *RoleHandler) Disable(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error) {
		return h.roleService.Disable(ctx, tenantID, id)
	})
}

// Delete godoc
// @ID           deleteRole
// @Summary      Delete a custom role
// @Description  System roles and roles assigned to users cannot be deleted
// @Tags         roles
// @Param        id path string true "Role ID" format(uuid)
// @Success      204
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	if err := h.roleService.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Permissions godoc
// @ID           listPermissions
// @Summary      Permission catalog
// @Description  Every resource:action code a role can grant
// @Tags         roles
// @Produce      json
// @Success      200 {object} APIResponse[[]identity.PermissionDTO]
// @Security     BearerAuth
// @Router       /roles/permissions [get]
func (h *RoleHandler) Permissions(c *gin.Context) {
	h.Success(c, h.roleService.Permissions())
}
