package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
)

// MaintenanceService is the part of fleet.MaintenanceService the handler needs
type MaintenanceService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req fleet.CreateMaintenanceOrderRequest) (*fleet.MaintenanceOrderResponse, error)
	GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*fleet.MaintenanceOrderResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter fleet.MaintenanceListFilter) (*shared.Paginated[fleet.MaintenanceOrderResponse], error)
	Start(ctx context.Context, tenantID, orderID uuid.UUID) (*fleet.MaintenanceOrderResponse, error)
	Complete(ctx context.Context, tenantID, orderID uuid.UUID, req fleet.CompleteMaintenanceOrderRequest) (*fleet.MaintenanceOrderResponse, error)
	Cancel(ctx context.Context, tenantID, orderID uuid.UUID, req fleet.CancelMaintenanceOrderRequest) (*fleet.MaintenanceOrderResponse, error)
}

// MaintenanceHandler handles maintenance order HTTP requests
type MaintenanceHandler struct {
	BaseHandler
	maintenanceService MaintenanceService
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(maintenanceService MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenanceService: maintenanceService}
}

// Create godoc
// @ID           createMaintenanceOrder
// @Summary      Open a maintenance order
// @Description  Opening an order puts the vehicle in maintenance
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        request body fleet.CreateMaintenanceOrderRequest true "Order"
// @Success      201 {object} APIResponse[fleet.MaintenanceOrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/maintenance-orders [post]
func (h *MaintenanceHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req fleet.CreateMaintenanceOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	order, err := h.maintenanceService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// GetByID godoc
// @ID           getMaintenanceOrder
// @Summary      Get maintenance order by ID
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.MaintenanceOrderResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/maintenance-orders/{id} [get]
func (h *MaintenanceHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.MaintenanceOrderResponse, error) {
		return h.maintenanceService.GetByID(ctx, tenantID, id)
	})
}

// List godoc
// @ID           listMaintenanceOrders
// @Summary      List maintenance orders
// @Tags         fleet
// @Produce      json
// @Param        vehicle_id query string false "Vehicle ID" format(uuid)
// @Param        status     query string false "Status" Enums(open, in_progress, completed, cancelled)
// @Param        page       query int    false "Page number" default(1)
// @Param        page_size  query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]fleet.MaintenanceOrderResponse]
// @Security     BearerAuth
// @Router       /fleet/maintenance-orders [get]
func (h *MaintenanceHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter fleet.MaintenanceListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.maintenanceService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Start godoc
// @ID           startMaintenanceOrder
// @Summary      Start work on a maintenance order
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.MaintenanceOrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/maintenance-orders/{id}/start [post]
func (h *MaintenanceHandler) Start(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.MaintenanceOrderResponse, error) {
		return h.maintenanceService.Start(ctx, tenantID, id)
	})
}

// Complete godoc
// @ID           completeMaintenanceOrder
// @Summary      Complete a maintenance order
// @Description  Records cost and odometer; the vehicle returns to active when no other order is open
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        id      path string                                true "Order ID" format(uuid)
// @Param        request body fleet.CompleteMaintenanceOrderRequest true "Cost and odometer"
// @Success      200 {object} APIResponse[fleet.MaintenanceOrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/maintenance-orders/{id}/complete [post]
func (h *MaintenanceHandler) Complete(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req fleet.CompleteMaintenanceOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.maintenanceService.Complete(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel godoc
// @ID           cancelMaintenanceOrder
// @Summary      Cancel a maintenance order
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        id      path string                              true "Order ID" format(uuid)
// @Param        request body fleet.CancelMaintenanceOrderRequest true "Reason"
// @Success      200 {object} APIResponse[fleet.MaintenanceOrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/maintenance-orders/{id}/cancel [post]
func (h *MaintenanceHandler) Cancel(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req fleet.CancelMaintenanceOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.maintenanceService.Cancel(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
