package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
)

// DriverService is the part of fleet.DriverService the handler needs
type DriverService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req fleet.CreateDriverRequest) (*fleet.DriverResponse, error)
	GetByID(ctx context.Context, tenantID, driverID uuid.UUID) (*fleet.DriverResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter fleet.DriverListFilter) (*shared.Paginated[fleet.DriverResponse], error)
	Update(ctx context.Context, tenantID, driverID uuid.UUID, req fleet.UpdateDriverRequest) (*fleet.DriverResponse, error)
	Activate(ctx context.Context, tenantID, driverID uuid.UUID) (*fleet.DriverResponse, error)
	Deactivate(ctx context.Context, tenantID, driverID uuid.UUID) (*fleet.DriverResponse, error)
	Delete(ctx context.Context, tenantID, driverID uuid.UUID) error
}

// DriverHandler handles driver HTTP requests
type DriverHandler struct {
	BaseHandler
	driverService DriverService
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(driverService DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// Create godoc
// @ID           createDriver
// @Summary      Register a driver
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        request body fleet.CreateDriverRequest true "Driver"
// @Success      201 {object} APIResponse[fleet.DriverResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/drivers [post]
func (h *DriverHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req fleet.CreateDriverRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	driver, err := h.driverService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, driver)
}

// GetByID godoc
// @ID           getDriver
// @Summary      Get driver by ID
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Driver ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.DriverResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/drivers/{id} [get]
func (h *DriverHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.DriverResponse, error) {
		return h.driverService.GetByID(ctx, tenantID, id)
	})
}

// List godoc
// @ID           listDrivers
// @Summary      List drivers
// @Tags         fleet
// @Produce      json
// @Param        search    query string false "Name or CPF"
// @Param        status    query string false "Status" Enums(active, inactive)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]fleet.DriverResponse]
// @Security     BearerAuth
// @Router       /fleet/drivers [get]
func (h *DriverHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter fleet.DriverListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.driverService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Update godoc
// @ID           updateDriver
// @Summary      Update a driver
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        id      path string                    true "Driver ID" format(uuid)
// @Param        request body fleet.UpdateDriverRequest true "Driver"
// @Success      200 {object} APIResponse[fleet.DriverResponse]
// @Security     BearerAuth
// @Router       /fleet/drivers/{id} [put]
func (h *DriverHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req fleet.UpdateDriverRequest
	if !h.bindJSON(c, &req) {
		return
	}
	driver, err := h.driverService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, driver)
}

// Activate godoc
// @ID           activateDriver
// @Summary      Activate a driver
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Driver ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.DriverResponse]
// @Security     BearerAuth
// @Router       /fleet/drivers/{id}/activate [post]
func (h *DriverHandler) Activate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.DriverResponse, error) {
		return h.driverService.Activate(ctx, tenantID, id)
	})
}

// Deactivate godoc
// @ID           deactivateDriver
// @Summary      Deactivate a driver
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Driver ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.DriverResponse]
// @Security     BearerAuth
// @Router       /fleet/drivers/{id}/deactivate [post]
func (h *DriverHandler) Deactivate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.DriverResponse, error) {
		return h.driverService.Deactivate(ctx, tenantID, id)
	})
}

// Delete godoc
// @ID           deleteDriver
// @Summary      Delete a driver
// @Tags         fleet
// @Param        id path string true "Driver ID" format(uuid)
// @Success      204
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/drivers/{id} [delete]
func (h *DriverHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) error {
		return h.driverService.Delete(ctx, tenantID, id)
	})
}
