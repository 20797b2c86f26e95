package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/identity"
	"github.com/mdfe/backend/internal/interfaces/http/dto"
	"github.com/mdfe/backend/internal/interfaces/http/middleware"
)

// maxCertificateSize bounds an uploaded A1 certificate
const maxCertificateSize = 64 << 10

// TenantService is the part of identity.TenantService the handler needs
type TenantService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.TenantDTO, error)
	Update(ctx context.Context, input identity.UpdateTenantInput) (*identity.TenantDTO, error)
	UpdateFiscalSettings(ctx context.Context, input identity.FiscalSettingsInput) (*identity.TenantDTO, error)
	RegisterCertificate(ctx context.Context, input identity.CertificateInput) (*identity.TenantDTO, error)
}

// TenantHandler serves the configuration of the authenticated company
type TenantHandler struct {
	BaseHandler
	tenantService TenantService
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantService TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// Get godoc
// @Summary      Get current company
// @Description  Registration and fiscal configuration of the authenticated company
// @Tags         tenant
// @Produce      json
// @Success      200 {object} dto.Response{data=identity.TenantDTO}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tenant [get]
func (h *TenantHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	tenant, err := h.tenantService.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// Update godoc
// @Summary      Update current company
// @Tags         tenant
// @Accept       json
// @Produce      json
// @Param        request body UpdateTenantRequest true "Company data"
// @Success      200 {object} dto.Response{data=identity.TenantDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tenant [put]
func (h *TenantHandler) Update(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req UpdateTenantRequest
	if !h.bindJSON(c, &req) {
		return
	}

	tenant, err := h.tenantService.Update(c.Request.Context(), identity.UpdateTenantInput{
		ID:                tenantID,
		LegalName:         req.LegalName,
		TradeName:         req.TradeName,
		StateRegistration: req.StateRegistration,
		Address:           req.Address,
		Phone:             req.Phone,
		Email:             req.Email,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// UpdateFiscalSettings godoc
// @Summary      Update fiscal settings
// @Description  RNTRC, emitter type, SEFAZ environment, series and last issued number
// @Tags         tenant
// @Accept       json
// @Produce      json
// @Param        request body FiscalSettingsRequest true "Fiscal settings"
// @Success      200 {object} dto.Response{data=identity.TenantDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tenant/fiscal-settings [put]
func (h *TenantHandler) UpdateFiscalSettings(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req FiscalSettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	tenant, err := h.tenantService.UpdateFiscalSettings(c.Request.Context(), identity.FiscalSettingsInput{
		ID:          tenantID,
		RNTRC:       req.RNTRC,
		EmitterType: req.EmitterType,
		Environment: req.Environment,
		Series:      req.Series,
		LastNumber:  req.LastNumber,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// UploadCertificate godoc
// @Summary      Upload A1 certificate
// @Description  Stores the PKCS#12 certificate used to sign manifests
// @Tags         tenant
// @Accept       multipart/form-data
// @Produce      json
// @Param        file       formData file   true "PKCS#12 file"
// @Param        expires_at formData string true "Expiry date (YYYY-MM-DD)"
// @Success      200 {object} dto.Response{data=identity.TenantDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tenant/certificate [post]
func (h *TenantHandler) UploadCertificate(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var form CertificateForm
	if err := c.ShouldBind(&form); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Certificate file is required")
		return
	}
	defer file.Close()

	if header.Size > maxCertificateSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeBodyTooLarge, "Certificate file is too large")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxCertificateSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read certificate file")
		return
	}
	if len(data) > maxCertificateSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeBodyTooLarge, "Certificate file is too large")
		return
	}

	tenant, err := h.tenantService.RegisterCertificate(c.Request.Context(), identity.CertificateInput{
		TenantID:  tenantID,
		Data:      data,
		ExpiresAt: form.ExpiresAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}
