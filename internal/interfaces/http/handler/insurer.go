package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/partner"
	"github.com/mdfe/backend/internal/domain/shared"
)

// InsurerService is the part of partner.InsurerService the handler needs
type InsurerService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req partner.CreateInsurerRequest) (*partner.InsurerResponse, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.InsurerResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) (*shared.Paginated[partner.InsurerResponse], error)
	Update(ctx context.Context, tenantID, id uuid.UUID, req partner.UpdateInsurerRequest) (*partner.InsurerResponse, error)
	Activate(ctx context.Context, tenantID, id uuid.UUID) (*partner.InsurerResponse, error)
	Deactivate(ctx context.Context, tenantID, id uuid.UUID) (*partner.InsurerResponse, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// InsurerHandler handles insurer HTTP requests
type InsurerHandler struct {
	BaseHandler
	insurerService InsurerService
}

// NewInsurerHandler creates a new insurer handler
func NewInsurerHandler(insurerService InsurerService) *InsurerHandler {
	return &InsurerHandler{insurerService: insurerService}
}

// Create godoc
// @ID           createInsurer
// @Summary      Register a insurer
// @Description  Cargo insurer referenced by the manifest insurance data; the CNPJ is unique per company
// @Tags         partners
// @Accept       json
// @Produce      json
// @Param        request body partner.CreateInsurerRequest true "Insurer"
// @Success      201 {object} APIResponse[partner.InsurerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/insurers [post]
func (h *InsurerHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req partner.CreateInsurerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	result, err := h.insurerService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetByID godoc
// @ID           getInsurer
// @Summary      Get insurer by ID
// @Tags         partners
// @Produce      json
// @Param        id path string true "Insurer ID" format(uuid)
// @Success      200 {object} APIResponse[partner.InsurerResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/insurers/{id} [get]
func (h *InsurerHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.InsurerResponse, error) {
		return h.insurerService.GetByID(ctx, tenantID, id)
	})
}

// List godoc
// @ID           listInsurers
// @Summary      List insurers
// @Tags         partners
// @Produce      json
// @Param        search    query string false "Name or document"
// @Param        status    query string false "Status" Enums(active, inactive)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Param        order_by  query string false "Order by field"
// @Param        order_dir query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]partner.InsurerResponse]
// @Security     BearerAuth
// @Router       /partner/insurers [get]
func (h *InsurerHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter partner.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.insurerService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Update godoc
// @ID           updateInsurer
// @Summary      Update a insurer
// @Tags         partners
// @Accept       json
// @Produce      json
// @Param        id      path string                         true "Insurer ID" format(uuid)
// @Param        request body partner.UpdateInsurerRequest true "Insurer"
// @Success      200 {object} APIResponse[partner.InsurerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/insurers/{id} [put]
func (h *InsurerHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req partner.UpdateInsurerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.insurerService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Activate godoc
// @ID           activateInsurer
// @Summary      Activate a insurer
// @Tags         partners
// @Produce      json
// @Param        id path string true "Insurer ID" format(uuid)
// @Success      200 {object} APIResponse[partner.InsurerResponse]
// @Security     BearerAuth
// @Router       /partner/insurers/{id}/activate [post]
func (h *InsurerHandler) Activate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.InsurerResponse, error) {
		return h.insurerService.Activate(ctx, tenantID, id)
	})
}

// Deactivate godoc
// @ID           deactivateInsurer
// @Summary      Deactivate a insurer
// @Tags         partners
// @Produce      json
// @Param        id path string true "Insurer ID" format(uuid)
// @Success      200 {object} APIResponse[partner.InsurerResponse]
// @Security     BearerAuth
// @Router       /partner/insurers/{id}/deactivate [post]
func (h *InsurerHandler) Deactivate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.InsurerResponse, error) {
		return h.insurerService.Deactivate(ctx, tenantID, id)
	})
}

// Delete godoc
// @ID           deleteInsurer
// @Summary      Delete a insurer
// @Tags         partners
// @Param        id path string true "Insurer ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/insurers/{id} [delete]
func (h *InsurerHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) error {
		return h.insurerService.Delete(ctx, tenantID, id)
	})
}
