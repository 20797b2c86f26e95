package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/partner"
	"github.com/mdfe/backend/internal/domain/shared"
)

// ClientService is the part of partner.ClientService the handler needs
type ClientService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req partner.CreateClientRequest) (*partner.ClientResponse, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.ClientResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) (*shared.Paginated[partner.ClientResponse], error)
	Update(ctx context.Context, tenantID, id uuid.UUID, req partner.UpdateClientRequest) (*partner.ClientResponse, error)
	Activate(ctx context.Context, tenantID, id uuid.UUID) (*partner.ClientResponse, error)
	Deactivate(ctx context.Context, tenantID, id uuid.UUID) (*partner.ClientResponse, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ClientHandler handles client HTTP requests
type ClientHandler struct {
	BaseHandler
	clientService ClientService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clientService ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// Create godoc
// @ID           createClient
// @Summary      Register a client
// @Description  Contracting party of the transport, identified by CNPJ or CPF; the document is unique per company
// @Tags         partners
// @Accept       json
// @Produce      json
// @Param        request body partner.CreateClientRequest true "Client"
// @Success      201 {object} APIResponse[partner.ClientResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req partner.CreateClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	result, err := h.clientService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetByID godoc
// @ID           getClient
// @Summary      Get client by ID
// @Tags         partners
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Success      200 {object} APIResponse[partner.ClientResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/clients/{id} [get]
func (h *ClientHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.ClientResponse, error) {
		return h.clientService.GetByID(ctx, tenantID, id)
	})
}

// List godoc
// @ID           listClients
// @Summary      List clients
// @Tags         partners
// @Produce      json
// @Param        search    query string false "Name or document"
// @Param        status    query string false "Status" Enums(active, inactive)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Param        order_by  query string false "Order by field"
// @Param        order_dir query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]partner.ClientResponse]
// @Security     BearerAuth
// @Router       /partner/clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter partner.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.clientService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// Update godoc
// @ID           updateClient
// @Summary      Update a client
// @Tags         partners
// @Accept       json
// @Produce      json
// @Param        id      path string                         true "Client ID" format(uuid)
// @Param        request body partner.UpdateClientRequest true "Client"
// @Success      200 {object} APIResponse[partner.ClientResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/clients/{id} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req partner.UpdateClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.clientService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Activate godoc
// @ID           activateClient
// @Summary      Activate a client
// @Tags         partners
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Success      200 {object} APIResponse[partner.ClientResponse]
// @Security     BearerAuth
// @Router       /partner/clients/{id}/activate [post]
func (h *ClientHandler) Activate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.ClientResponse, error) {
		return h.clientService.Activate(ctx, tenantID, id)
	})
}

// Deactivate godoc
// @ID           deactivateClient
// @Summary      Deactivate a client
// @Tags         partners
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Success      200 {object} APIResponse[partner.ClientResponse]
// @Security     BearerAuth
// @Router       /partner/clients/{id}/deactivate [post]
func (h *ClientHandler) Deactivate(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*partner.ClientResponse, error) {
		return h.clientService.Deactivate(ctx, tenantID, id)
	})
}

// Delete godoc
// @ID           deleteClient
// @Summary      Delete a client
// @Tags         partners
// @Param        id path string true "Client ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /partner/clients/{id} [delete]
func (h *ClientHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) error {
		return h.clientService.Delete(ctx, tenantID, id)
	})
}
