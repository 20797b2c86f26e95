package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/partner"
	"github.com/mdfe/backend/internal/domain/shared"
)

// SupplierService is the part of partner.SupplierService the handler needs
type SupplierService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req partner.CreateSupplierRequest) (*partner.SupplierResponse, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.SupplierResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) (*shared.Paginated[partner.SupplierResponse], error)
	Update(ctx context.Context, tenantID, id uuid.UUID, req partner.UpdateSupplierRequest) (*partner.SupplierResponse, error)
	Activate(ctx context.Context, tenantID, id uuid.UUID) (*partner.SupplierResponse, error)
	Deactivate(ctx context.Context, tenantID, id uuid.UUID) (*partner.SupplierResponse, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// SupplierHandler handles supplier HTTP requests
type SupplierHandler struct {
	BaseHandler
	supplierService SupplierService
}

// NewSupplierHandler creates a new supplier handler
func NewSupplierHandler(supplierService SupplierService) *SupplierHandler {
	return &SupplierHandler{supplierService: supplierService}
}

// Create godoc
// @ID           createSupplier
// @Summary      Register a supplier
// @Description  Workshops and vendors that serve maintenance orders
// @Tags         partners
// @Accept       json
// @Produce      json
// @Param        request body partner.CreateSupplierRequest true "Supplier"
// @Success      201 {object} APIResponse[partner.SupplierResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/suppliers [post]
func (h *SupplierHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req partner.CreateSupplierRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	result, err := h.supplierService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetByID godoc
// @ID           getSupplier
// @Summary      Get supplier by ID
// @Tags         partners
// @Produce      json
// @Param        id path string true "Supplier ID" format(uuid)
// @Success      200 {object} APIResponse[partner.SupplierResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/suppliers/{id} [get]
func (h *SupplierHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.SupplierResponse, error) {
		return h.supplierService.GetByID(ctx, tenantID, id)
	})
}

// List godoc
// @ID           listSuppliers
// @Summary      List suppliers
// @Tags         partners
// @Produce      json
// @Param        search    query string false "Name or document"
// @Param        status    query string false "Status" Enums(active, inactive)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Param        order_by  query string false "Order by field"
// @Param        order_dir query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]partner.SupplierResponse]
// @Security     BearerAuth
// @Router       /partner/suppliers [get]
func (h *SupplierHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter partner.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.supplierService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Update godoc
// @ID           updateSupplier
// @Summary      Update a supplier
// @Tags         partners
// @Accept       json
// @Produce      json
// @Param        id      path string                         true "Supplier ID" format(uuid)
// @Param        request body partner.UpdateSupplierRequest true "Supplier"
// @Success      200 {object} APIResponse[partner.SupplierResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/suppliers/{id} [put]
func (h *SupplierHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req partner.UpdateSupplierRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.supplierService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Activate godoc
// @ID           activateSupplier
// @Summary      Activate a supplier
// @Tags         partners
// @Produce      json
// @Param        id path string true "Supplier ID" format(uuid)
// @Success      200 {object} APIResponse[partner.SupplierResponse]
// @Security     BearerAuth
// @Router       /partner/suppliers/{id}/activate [post]
func (h *SupplierHandler) Activate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.SupplierResponse, error) {
		return h.supplierService.Activate(ctx, tenantID, id)
	})
}

// Deactivate godoc
// @ID           deactivateSupplier
// @Summary      Deactivate a supplier
// @Tags         partners
// @Produce      json
// @Param        id path string true "Supplier ID" format(uuid)
// @Success      200 {object} APIResponse[partner.SupplierResponse]
// @Security     BearerAuth
// @Router       /partner/suppliers/{id}/deactivate [post]
func (h *SupplierHandler) Deactivate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.SupplierResponse, error) {
		return h.supplierService.Deactivate(ctx, tenantID, id)
	})
}

// Delete godoc
// @ID           deleteSupplier
// @Summary      Delete a supplier
// @Tags         partners
// @Param        id path string true "Supplier ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/suppliers/{id} [delete]
func (h *SupplierHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) error {
		return h.supplierService.Delete(ctx, tenantID, id)
	})
}
