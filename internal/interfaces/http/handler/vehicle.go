package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
)

// VehicleService is the part of fleet.VehicleService the handler needs
type VehicleService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req fleet.CreateVehicleRequest) (*fleet.VehicleResponse, error)
	GetByID(ctx context.Context, tenantID, vehicleID uuid.UUID) (*fleet.VehicleResponse, error)
	GetByPlate(ctx context.Context, tenantID uuid.UUID, plate string) (*fleet.VehicleResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter fleet.VehicleListFilter) (*shared.Paginated[fleet.VehicleResponse], error)
	Update(ctx context.Context, tenantID, vehicleID uuid.UUID, req fleet.UpdateVehicleRequest) (*fleet.VehicleResponse, error)
	Activate(ctx context.Context, tenantID, vehicleID uuid.UUID) (*fleet.VehicleResponse, error)
	Deactivate(ctx context.Context, tenantID, vehicleID uuid.UUID) (*fleet.VehicleResponse, error)
	Delete(ctx context.Context, tenantID, vehicleID uuid.UUID) error
}

// VehicleHandler handles vehicle HTTP requests
type VehicleHandler struct {
	BaseHandler
	vehicleService VehicleService
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicleService VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

// Create godoc
// @ID           createVehicle
// @Summary      Register a vehicle
// @Description  Registers a traction unit or trailer; the plate is unique per company
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        request body fleet.CreateVehicleRequest true "Vehicle"
// @Success      201 {object} APIResponse[fleet.VehicleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/vehicles [post]
func (h *VehicleHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req fleet.CreateVehicleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	vehicle, err := h.vehicleService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, vehicle)
}

// GetByID godoc
// @ID           getVehicle
// @Summary      Get vehicle by ID
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Vehicle ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.VehicleResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/vehicles/{id} [get]
func (h *VehicleHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.VehicleResponse, error) {
		return h.vehicleService.GetByID(ctx, tenantID, id)
	})
}

// GetByPlate godoc
// @ID           getVehicleByPlate
// @Summary      Get vehicle by plate
// @Tags         fleet
// @Produce      json
// @Param        plate path string true "Plate (ABC1D23 or ABC1234)"
// @Success      200 {object} APIResponse[fleet.VehicleResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/vehicles/by-plate/{plate} [get]
func (h *VehicleHandler) GetByPlate(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	vehicle, err := h.vehicleService.GetByPlate(c.Request.Context(), tenantID, c.Param("plate"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vehicle)
}

// List godoc
// @ID           listVehicles
// @Summary      List vehicles
// @Tags         fleet
// @Produce      json
// @Param        search    query string false "Plate, RENAVAM or internal code"
// @Param        kind      query string false "Kind" Enums(traction, trailer)
// @Param        status    query string false "Status" Enums(active, maintenance, inactive)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]fleet.VehicleResponse]
// @Security     BearerAuth
// @Router       /fleet/vehicles [get]
func (h *VehicleHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter fleet.VehicleListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.vehicleService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Update godoc
// @ID           updateVehicle
// @Summary      Update a vehicle
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        id      path string                     true "Vehicle ID" format(uuid)
// @Param        request body fleet.UpdateVehicleRequest true "Vehicle"
// @Success      200 {object} APIResponse[fleet.VehicleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/vehicles/{id} [put]
func (h *VehicleHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req fleet.UpdateVehicleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	vehicle, err := h.vehicleService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vehicle)
}

// Activate godoc
// @ID           activateVehicle
// @Summary      Activate a vehicle
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Vehicle ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.VehicleResponse]
// @Security     BearerAuth
// @Router       /fleet/vehicles/{id}/activate [post]
func (h *VehicleHandler) Activate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.VehicleResponse, error) {
		return h.vehicleService.Activate(ctx, tenantID, id)
	})
}

// Deactivate godoc
// @ID           deactivateVehicle
// @Summary      Deactivate a vehicle
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Vehicle ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.VehicleResponse]
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/vehicles/{id}/deactivate [post]
func (h *VehicleHandler) Deactivate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.VehicleResponse, error) {
		return h.vehicleService.Deactivate(ctx, tenantID, id)
	})
}

// Delete godoc
// @ID           deleteVehicle
// @Summary      Delete a vehicle
// @Description  Vehicles on an open trip or maintenance order cannot be deleted
// @Tags         fleet
// @Param        id path string true "Vehicle ID" format(uuid)
// @Success      204
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/vehicles/{id} [delete]
func (h *VehicleHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) error {
		return h.vehicleService.Delete(ctx, tenantID, id)
	})
}
