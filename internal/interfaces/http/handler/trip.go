package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
)

// TripService is the part of fleet.TripService the handler needs
type TripService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req fleet.CreateTripRequest) (*fleet.TripResponse, error)
	GetByID(ctx context.Context, tenantID, tripID uuid.UUID) (*fleet.TripResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter fleet.TripListFilter) (*shared.Paginated[fleet.TripResponse], error)
	Start(ctx context.Context, tenantID, tripID uuid.UUID, req fleet.OdometerRequest) (*fleet.TripResponse, error)
	Finish(ctx context.Context, tenantID, tripID uuid.UUID, req fleet.OdometerRequest) (*fleet.TripResponse, error)
	Cancel(ctx context.Context, tenantID, tripID uuid.UUID) (*fleet.TripResponse, error)
	LinkManifest(ctx context.Context, tenantID, tripID, manifestID uuid.UUID) (*fleet.TripResponse, error)
}

// TripHandler handles trip HTTP requests
type TripHandler struct {
	BaseHandler
	tripService TripService
}

// NewTripHandler creates a new trip handler
func NewTripHandler(tripService TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// Create godoc
// @ID           createTrip
// @Summary      Plan a trip
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        request body fleet.CreateTripRequest true "Trip"
// @Success      201 {object} APIResponse[fleet.TripResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/trips [post]
func (h *TripHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req fleet.CreateTripRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	trip, err := h.tripService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, trip)
}

// GetByID godoc
// @ID           getTrip
// @Summary      Get trip by ID
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Trip ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.TripResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/trips/{id} [get]
func (h *TripHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.TripResponse, error) {
		return h.tripService.GetByID(ctx, tenantID, id)
	})
}

// List godoc
// @ID           listTrips
// @Summary      List trips
// @Tags         fleet
// @Produce      json
// @Param        vehicle_id query string false "Vehicle ID" format(uuid)
// @Param        status     query string false "Status" Enums(planned, in_progress, completed, cancelled)
// @Param        page       query int    false "Page number" default(1)
// @Param        page_size  query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]fleet.TripResponse]
// @Security     BearerAuth
// @Router       /fleet/trips [get]
func (h *TripHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter fleet.TripListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.tripService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Start godoc
// @ID           startTrip
// @Summary      Start a trip
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        id      path string                true "Trip ID" format(uuid)
// @Param        request body fleet.OdometerRequest true "Odometer at departure"
// @Success      200 {object} APIResponse[fleet.TripResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/trips/{id}/start [post]
func (h *TripHandler) Start(c *gin.Context) {
	h.odometer(c, h.tripService.Start)
}

// Finish godoc
// @ID           finishTrip
// @Summary      Finish a trip
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        id      path string                true "Trip ID" format(uuid)
// @Param        request body fleet.OdometerRequest true "Odometer at arrival"
// @Success      200 {object} APIResponse[fleet.TripResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/trips/{id}/finish [post]
func (h *TripHandler) Finish(c *gin.Context) {
	h.odometer(c, h.tripService.Finish)
}

func (h *TripHandler) odometer(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID, fleet.OdometerRequest) (*fleet.TripResponse, error)) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req fleet.OdometerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	trip, err := fn(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, trip)
}

// Cancel godoc
// @ID           cancelTrip
// @Summary      Cancel a trip
// @Tags         fleet
// @Produce      json
// @Param        id path string true "Trip ID" format(uuid)
// @Success      200 {object} APIResponse[fleet.TripResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/trips/{id}/cancel [post]
func (h *TripHandler) Cancel(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*fleet.TripResponse, error) {
		return h.tripService.Cancel(ctx, tenantID, id)
	})
}

// LinkManifest godoc
// @ID           linkTripManifest
// @Summary      Link a manifest to a trip
// @Tags         fleet
// @Accept       json
// @Produce      json
// @Param        id      path string                    true "Trip ID" format(uuid)
// @Param        request body fleet.LinkManifestRequest true "Manifest"
// @Success      200 {object} APIResponse[fleet.TripResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fleet/trips/{id}/manifest [put]
func (h *TripHandler) LinkManifest(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req fleet.LinkManifestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	trip, err := h.tripService.LinkManifest(c.Request.Context(), tenantID, id, req.ManifestID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, trip)
}
