package handler

import (
	"time"

	"github.com/mdfe/backend/internal/application/common"
)

// UpdateTenantRequest represents the registration data of the company
type UpdateTenantRequest struct {
	LegalName         string              `json:"legal_name" binding:"required,min=2,max=60"`
	TradeName         string              `json:"trade_name" binding:"max=60"`
	StateRegistration string              `json:"state_registration" binding:"required,max=14"`
	Address           common.AddressInput `json:"address" binding:"required"`
	Phone             string              `json:"phone" binding:"max=20"`
	Email             string              `json:"email" binding:"omitempty,email,max=200"`
}

// FiscalSettingsRequest changes how the company issues manifests. Omitted
// fields keep their value.
type FiscalSettingsRequest struct {
	RNTRC       *string `json:"rntrc" binding:"omitempty,len=8,numeric"`
	EmitterType *int    `json:"emitter_type" binding:"omitempty,oneof=1 2"`
	Environment *string `json:"environment" binding:"omitempty,oneof=production homologation"`
	Series      *int    `json:"series" binding:"omitempty,min=0,max=999"`
	LastNumber  *int    `json:"last_number" binding:"omitempty,min=0,max=999999999"`
}

// CertificateForm is the multipart form of a certificate upload
type CertificateForm struct {
	ExpiresAt time.Time `form:"expires_at" binding:"required" time_format:"2006-01-02"`
}
