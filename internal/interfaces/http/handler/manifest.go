package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/interfaces/http/dto"
	"github.com/mdfe/backend/internal/interfaces/http/middleware"
)

// maxIdempotencyKeyLength bounds the Idempotency-Key header
const maxIdempotencyKeyLength = 128

// ManifestService is the part of manifest.ManifestService the handler needs
type ManifestService interface {
	CreateDraft(ctx context.Context, tenantID uuid.UUID, req manifest.CreateManifestRequest) (*manifest.ManifestResponse, error)
	UpdateDraft(ctx context.Context, tenantID, manifestID uuid.UUID, req manifest.UpdateManifestRequest) (*manifest.ManifestResponse, error)
	GetByID(ctx context.Context, tenantID, manifestID uuid.UUID) (*manifest.ManifestResponse, error)
	GetByAccessKey(ctx context.Context, tenantID uuid.UUID, accessKey string) (*manifest.ManifestResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter manifest.ListFilter) (*shared.Paginated[manifest.ManifestSummary], error)
	ListUnclosed(ctx context.Context, tenantID uuid.UUID) (*manifest.UnclosedResponse, error)
	DeleteDraft(ctx context.Context, tenantID, manifestID uuid.UUID) error
	Transmit(ctx context.Context, tenantID, manifestID uuid.UUID, idempotencyKey string) (*manifest.TransmitResult, error)
	Consult(ctx context.Context, tenantID, manifestID uuid.UUID) (*manifest.ConsultResponse, error)
	Cancel(ctx context.Context, tenantID, manifestID uuid.UUID, req manifest.CancelManifestRequest) (*manifest.ManifestResponse, error)
	Close(ctx context.Context, tenantID, manifestID uuid.UUID, req manifest.CloseManifestRequest) (*manifest.ManifestResponse, error)
	IncludeDriver(ctx context.Context, tenantID, manifestID uuid.UUID, req manifest.IncludeDriverRequest) (*manifest.ManifestResponse, error)
	RenderDAMDFE(ctx context.Context, tenantID, manifestID uuid.UUID) (*manifest.DocumentFile, error)
	DownloadXML(ctx context.Context, tenantID, manifestID uuid.UUID) (*manifest.DocumentFile, error)
	ServiceStatus(ctx context.Context, tenantID uuid.UUID, uf string) (*manifest.ServiceStatusResponse, error)
}

// ManifestHandler handles MDF-e HTTP requests
type ManifestHandler struct {
	BaseHandler
	manifestService ManifestService
}

// NewManifestHandler creates a new manifest handler
func NewManifestHandler(manifestService ManifestService) *ManifestHandler {
	return &ManifestHandler{manifestService: manifestService}
}

// Create godoc
// @ID           createManifest
// @Summary      Create a manifest draft
// @Description  Opens a draft. Vehicles, drivers, clients and insurer are referenced by ID and copied onto the manifest. No number is allocated until transmission.
// @Tags         manifests
// @Accept       json
// @Produce      json
// @Param        request body manifest.CreateManifestRequest true "Manifest content"
// @Success      201 {object} APIResponse[manifest.ManifestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests [post]
func (h *ManifestHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req manifest.CreateManifestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID

	m, err := h.manifestService.CreateDraft(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, m)
}

// Update godoc
// @ID           updateManifest
// @Summary      Update a manifest draft
// @Description  Replaces the content of a draft or rejected manifest
// @Tags         manifests
// @Accept       json
// @Produce      json
// @Param        id      path string                         true "Manifest ID" format(uuid)
// @Param        request body manifest.UpdateManifestRequest true "Manifest content"
// @Success      200 {object} APIResponse[manifest.ManifestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id} [put]
func (h *ManifestHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req manifest.UpdateManifestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.manifestService.UpdateDraft(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// GetByID godoc
// @ID           getManifest
// @Summary      Get manifest by ID
// @Tags         manifests
// @Produce      json
// @Param        id path string true "Manifest ID" format(uuid)
// @Success      200 {object} APIResponse[manifest.ManifestResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id} [get]
func (h *ManifestHandler) GetByID(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*manifest.ManifestResponse, error) {
		return h.manifestService.GetByID(ctx, tenantID, id)
	})
}

// GetByAccessKey godoc
// @ID           getManifestByAccessKey
// @Summary      Get manifest by access key
// @Tags         manifests
// @Produce      json
// @Param        key path string true "44-digit access key"
// @Success      200 {object} APIResponse[manifest.ManifestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/by-key/{key} [get]
func (h *ManifestHandler) GetByAccessKey(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	m, err := h.manifestService.GetByAccessKey(c.Request.Context(), tenantID, c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// List godoc
// @ID           listManifests
// @Summary      List manifests
// @Tags         manifests
// @Produce      json
// @Param        search     query string false "Number or access key"
// @Param        status     query string false "Status" Enums(draft, pending, authorized, rejected, cancelled, closed)
// @Param        uf         query string false "Start or end UF"
// @Param        vehicle_id query string false "Traction vehicle" format(uuid)
// @Param        from       query string false "Created from (YYYY-MM-DD)"
// @Param        to         query string false "Created until (YYYY-MM-DD)"
// @Param        page       query int    false "Page number" default(1)
// @Param        page_size  query int    false "Page size" default(20)
// @Param        order_by   query string false "Order by" Enums(created_at, number, issued_at, status)
// @Param        order_dir  query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]manifest.ManifestSummary]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests [get]
func (h *ManifestHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter manifest.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.manifestService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(&h.BaseHandler, c, page)
}

// ListUnclosed godoc
// @ID           listUnclosedManifests
// @Summary      List manifests awaiting closure
// @Description  Authorized manifests that were neither cancelled nor closed
// @Tags         manifests
// @Produce      json
// @Success      200 {object} APIResponse[manifest.UnclosedResponse]
// @Security     BearerAuth
// @Router       /manifests/unclosed [get]
func (h *ManifestHandler) ListUnclosed(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	result, err := h.manifestService.ListUnclosed(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Items == nil {
		result.Items = []manifest.ManifestSummary{}
	}
	h.Success(c, result)
}

// Delete godoc
// @ID           deleteManifest
// @Summary      Delete a manifest draft
// @Description  Only drafts that never reached SEFAZ can be deleted
// @Tags         manifests
// @Param        id path string true "Manifest ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id} [delete]
func (h *ManifestHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) error {
		return h.manifestService.DeleteDraft(ctx, tenantID, id)
	})
}

// Transmit godoc
// @ID           transmitManifest
// @Summary      Transmit a manifest to SEFAZ
// @Description  Allocates number and access key, signs and sends the manifest. Requests repeating an Idempotency-Key get the first result back. Answers 202 when SEFAZ has not replied yet; the manifest stays pending and is retried in the background.
// @Tags         manifests
// @Produce      json
// @Param        id              path   string true  "Manifest ID" format(uuid)
// @Param        Idempotency-Key header string false "Client generated key"
// @Success      200 {object} APIResponse[manifest.TransmitResult]
// @Success      202 {object} APIResponse[manifest.TransmitResult]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id}/transmit [post]
func (h *ManifestHandler) Transmit(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput,
			"Idempotency-Key must have at most "+strconv.Itoa(maxIdempotencyKeyLength)+" characters")
		return
	}

	result, err := h.manifestService.Transmit(c.Request.Context(), tenantID, id, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		c.Header(middleware.IdempotentReplayedHeader, "true")
	}
	if result.Pending() {
		h.Accepted(c, result)
		return
	}
	h.Success(c, result)
}

// Status godoc
// @ID           consultManifest
// @Summary      Consult the manifest at SEFAZ
// @Description  Queries SEFAZ for the manifest and reconciles a pending local status
// @Tags         manifests
// @Produce      json
// @Param        id path string true "Manifest ID" format(uuid)
// @Success      200 {object} APIResponse[manifest.ConsultResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id}/status [get]
func (h *ManifestHandler) Status(c *gin.Context) {
	respondByID(&h.BaseHandler, c, func(ctx context.Context, tenantID, id uuid.UUID) (*manifest.ConsultResponse, error) {
		return h.manifestService.Consult(ctx, tenantID, id)
	})
}

// Cancel godoc
// @ID           cancelManifest
// @Summary      Cancel an authorized manifest
// @Description  Registers the cancellation event. Allowed within 24 hours of the authorization and before closure.
// @Tags         manifests
// @Accept       json
// @Produce      json
// @Param        id      path string                         true "Manifest ID" format(uuid)
// @Param        request body manifest.CancelManifestRequest true "Justification (15 to 255 characters)"
// @Success      200 {object} APIResponse[manifest.ManifestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id}/cancel [post]
func (h *ManifestHandler) Cancel(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req manifest.CancelManifestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.manifestService.Cancel(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// Close godoc
// @ID           closeManifest
// @Summary      Close an authorized manifest
// @Description  Registers the closure (encerramento) event at the municipality where the trip ended
// @Tags         manifests
// @Accept       json
// @Produce      json
// @Param        id      path string                        true "Manifest ID" format(uuid)
// @Param        request body manifest.CloseManifestRequest true "Closure place and date"
// @Success      200 {object} APIResponse[manifest.ManifestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id}/close [post]
func (h *ManifestHandler) Close(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req manifest.CloseManifestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.manifestService.Close(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// IncludeDriver godoc
// @ID           includeManifestDriver
// @Summary      Include a driver in an authorized manifest
// @Tags         manifests
// @Accept       json
// @Produce      json
// @Param        id      path string                        true "Manifest ID" format(uuid)
// @Param        request body manifest.IncludeDriverRequest true "Driver"
// @Success      200 {object} APIResponse[manifest.ManifestResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id}/drivers [post]
func (h *ManifestHandler) IncludeDriver(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	var req manifest.IncludeDriverRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.manifestService.IncludeDriver(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// DAMDFE godoc
// @ID           getManifestDamdfe
// @Summary      Download the DAMDFE
// @Description  Renders the auxiliary document as PDF. With link=true the presigned download URL is returned instead of the file when the archive is configured.
// @Tags         manifests
// @Produce      application/pdf
// @Produce      json
// @Param        id   path  string true  "Manifest ID" format(uuid)
// @Param        link query bool   false "Return a download link"
// @Success      200 {file} binary
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id}/damdfe [get]
func (h *ManifestHandler) DAMDFE(c *gin.Context) {
	h.serveDocument(c, "inline", h.manifestService.RenderDAMDFE)
}

// XML godoc
// @ID           getManifestXml
// @Summary      Download the authorized XML
// @Tags         manifests
// @Produce      application/xml
// @Produce      json
// @Param        id   path  string true  "Manifest ID" format(uuid)
// @Param        link query bool   false "Return a download link"
// @Success      200 {file} binary
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manifests/{id}/xml [get]
func (h *ManifestHandler) XML(c *gin.Context) {
	h.serveDocument(c, "attachment", h.manifestService.DownloadXML)
}

func (h *ManifestHandler) serveDocument(c *gin.Context, disposition string, fn func(context.Context, uuid.UUID, uuid.UUID) (*manifest.DocumentFile, error)) {
	tenantID, id, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	file, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if link, _ := strconv.ParseBool(c.Query("link")); link && file.URL != "" {
		h.Success(c, file)
		return
	}
	if len(file.Data) == 0 {
		if file.URL != "" {
			c.Redirect(http.StatusTemporaryRedirect, file.URL)
			return
		}
		h.Error(c, http.StatusNotFound, "XML_NOT_AVAILABLE", "Document not available")
		return
	}

	c.Header("Content-Disposition", disposition+"; filename=\""+file.Filename+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// ServiceStatus godoc
// @ID           sefazServiceStatus
// @Summary      SEFAZ service status
// @Description  Health of the MDF-e authorization service of a UF in the company environment
// @Tags         sefaz
// @Produce      json
// @Param        uf path string true "UF" example(SP)
// @Success      200 {object} APIResponse[manifest.ServiceStatusResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /sefaz/status/{uf} [get]
func (h *ManifestHandler) ServiceStatus(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	status, err := h.manifestService.ServiceStatus(c.Request.Context(), tenantID, strings.ToUpper(c.Param("uf")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
