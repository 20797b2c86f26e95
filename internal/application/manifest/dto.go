package manifest

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UnloadingInput is a municipality of unloading with the keys of the
// NF-e or CT-e delivered there
type UnloadingInput struct {
	Municipality common.MunicipalityInput `json:"municipality" binding:"required"`
	DocumentKeys []string                 `json:"document_keys" binding:"dive,accesskey"`
}

// InsuranceInput references a registered insurer or carries the insurer
// data inline
type InsuranceInput struct {
	Responsible         int        `json:"responsible" binding:"required,oneof=1 2"`
	ResponsibleDocument string     `json:"responsible_document"`
	InsurerID           *uuid.UUID `json:"insurer_id"`
	InsurerName         string     `json:"insurer_name" binding:"max=30"`
	InsurerCNPJ         string     `json:"insurer_cnpj"`
	PolicyNumber        string     `json:"policy_number" binding:"max=20"`
	Endorsements        []string   `json:"endorsements" binding:"max=20"`
}

// TollVoucherInput is a vale-pedagio entry
type TollVoucherInput struct {
	SupplierCNPJ  string          `json:"supplier_cnpj" binding:"required,cnpj"`
	VoucherNumber string          `json:"voucher_number" binding:"required,max=20"`
	Value         decimal.Decimal `json:"value"`
}

// ContentRequest is the editable body of a manifest. Vehicles, drivers,
// clients and insurer are given by ID and copied onto the manifest.
type ContentRequest struct {
	EmissionType    int                        `json:"emission_type" binding:"omitempty,oneof=1 2"`
	StartUF         string                     `json:"start_uf" binding:"required,uf"`
	EndUF           string                     `json:"end_uf" binding:"required,uf"`
	RouteUFs        []string                   `json:"route_ufs" binding:"max=25,dive,uf"`
	LoadingPlaces   []common.MunicipalityInput `json:"loading_places" binding:"max=50,dive"`
	UnloadingPlaces []UnloadingInput           `json:"unloading_places" binding:"dive"`
	DepartureAt     *time.Time                 `json:"departure_at"`
	VehicleID       *uuid.UUID                 `json:"vehicle_id"`
	TrailerIDs      []uuid.UUID                `json:"trailer_ids" binding:"max=3"`
	DriverIDs       []uuid.UUID                `json:"driver_ids" binding:"max=10"`
	ClientIDs       []uuid.UUID                `json:"client_ids"`
	Insurance       *InsuranceInput            `json:"insurance"`
	CargoValue      decimal.Decimal            `json:"cargo_value"`
	GrossWeight     decimal.Decimal            `json:"gross_weight"`
	WeightUnit      string                     `json:"weight_unit" binding:"omitempty,oneof=KG TON"`
	CIOT            string                     `json:"ciot" binding:"omitempty,len=12,numeric"`
	TollVouchers    []TollVoucherInput         `json:"toll_vouchers" binding:"dive"`
	AdditionalInfo  string                     `json:"additional_info" binding:"max=5000"`
}

// CreateManifestRequest opens a draft
type CreateManifestRequest struct {
	ContentRequest
	CreatedBy uuid.UUID `json:"-"`
}

// UpdateManifestRequest replaces the content of a draft or rejected manifest
type UpdateManifestRequest struct {
	ContentRequest
}

// CancelManifestRequest is the cancellation event input
type CancelManifestRequest struct {
	Justification string `json:"justification" binding:"required,min=15,max=255"`
}

// CloseManifestRequest is the closure (encerramento) event input
type CloseManifestRequest struct {
	Municipality common.MunicipalityInput `json:"municipality" binding:"required"`
	// Date defaults to today
	Date *time.Time `json:"date"`
}

// IncludeDriverRequest adds a registered driver to an authorized manifest
type IncludeDriverRequest struct {
	DriverID uuid.UUID `json:"driver_id" binding:"required"`
}

// ListFilter narrows manifest listings
type ListFilter struct {
	Search    string     `form:"search"`
	Status    string     `form:"status" binding:"omitempty,oneof=draft pending authorized rejected cancelled closed"`
	UF        string     `form:"uf" binding:"omitempty,uf"`
	VehicleID string     `form:"vehicle_id" binding:"omitempty,uuid"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"min=0"`
	PageSize  int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy   string     `form:"order_by" binding:"omitempty,oneof=created_at number issued_at status"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f ListFilter) toDomain() manifest.Filter {
	return manifest.Filter{
		Filter: shared.Filter{
			Search:   common.Sanitize(f.Search),
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		}.Normalize(),
		Status:    manifest.Status(f.Status),
		From:      f.From,
		To:        f.To,
		UF:        f.UF,
		VehicleID: f.vehicleID(),
	}
}

func (f ListFilter) vehicleID() *uuid.UUID {
	id, err := uuid.Parse(f.VehicleID)
	if err != nil {
		return nil
	}
	return &id
}

// PlaceResponse is a municipality on the manifest
type PlaceResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
	UF   string `json:"uf"`
}

// UnloadingResponse is an unloading municipality with its documents
type UnloadingResponse struct {
	PlaceResponse
	Documents []manifest.FiscalDocument `json:"documents"`
}

// EventResponse is one entry of the manifest history
type EventResponse struct {
	Kind       string            `json:"kind"`
	Code       string            `json:"code,omitempty"`
	Sequence   int               `json:"sequence"`
	Protocol   string            `json:"protocol,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ManifestResponse represents a manifest in API responses
type ManifestResponse struct {
	ID                 uuid.UUID              `json:"id"`
	TenantID           uuid.UUID              `json:"tenant_id"`
	Series             int                    `json:"series"`
	Number             int                    `json:"number"`
	AccessKey          string                 `json:"access_key,omitempty"`
	AccessKeyFormatted string                 `json:"access_key_formatted,omitempty"`
	IssuedAt           *time.Time             `json:"issued_at,omitempty"`
	EmissionType       int                    `json:"emission_type"`
	EmitterType        int                    `json:"emitter_type"`
	Environment        string                 `json:"environment"`
	Status             string                 `json:"status"`
	StartUF            string                 `json:"start_uf"`
	EndUF              string                 `json:"end_uf"`
	RouteUFs           []string               `json:"route_ufs"`
	LoadingPlaces      []PlaceResponse        `json:"loading_places"`
	UnloadingPlaces    []UnloadingResponse    `json:"unloading_places"`
	DepartureAt        *time.Time             `json:"departure_at,omitempty"`
	Vehicle            *manifest.VehicleRef   `json:"vehicle,omitempty"`
	Trailers           []manifest.VehicleRef  `json:"trailers"`
	Drivers            []manifest.DriverRef   `json:"drivers"`
	Clients            []manifest.ClientRef   `json:"clients"`
	Insurance          *manifest.Insurance    `json:"insurance,omitempty"`
	CIOT               string                 `json:"ciot,omitempty"`
	TollVouchers       []manifest.TollVoucher `json:"toll_vouchers"`
	NFeCount           int                    `json:"nfe_count"`
	CTeCount           int                    `json:"cte_count"`
	CargoValue         decimal.Decimal        `json:"cargo_value"`
	GrossWeight        decimal.Decimal        `json:"gross_weight"`
	WeightUnit         string                 `json:"weight_unit"`
	AdditionalInfo     string                 `json:"additional_info,omitempty"`
	SubmittedAt        *time.Time             `json:"submitted_at,omitempty"`
	Protocol           string                 `json:"protocol,omitempty"`
	AuthorizedAt       *time.Time             `json:"authorized_at,omitempty"`
	RejectionCode      string                 `json:"rejection_code,omitempty"`
	RejectionReason    string                 `json:"rejection_reason,omitempty"`
	CancelProtocol     string                 `json:"cancel_protocol,omitempty"`
	CancelledAt        *time.Time             `json:"cancelled_at,omitempty"`
	ClosureProtocol    string                 `json:"closure_protocol,omitempty"`
	ClosurePlace       *PlaceResponse         `json:"closure_place,omitempty"`
	ClosureDate        *time.Time             `json:"closure_date,omitempty"`
	ClosedAt           *time.Time             `json:"closed_at,omitempty"`
	HasXML             bool                   `json:"has_xml"`
	Events             []EventResponse        `json:"events,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// ToManifestResponse converts a manifest. Events are included when the
// manifest was loaded with its history.
func ToManifestResponse(m *manifest.Manifest) ManifestResponse {
	resp := ManifestResponse{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Series:          m.Series,
		Number:          m.Number,
		AccessKey:       m.AccessKey,
		IssuedAt:        m.IssuedAt,
		EmissionType:    int(m.EmissionType),
		EmitterType:     int(m.EmitterType),
		Environment:     string(m.Environment),
		Status:          string(m.Status),
		StartUF:         m.StartUF,
		EndUF:           m.EndUF,
		RouteUFs:        nonNil(m.RouteUFs),
		LoadingPlaces:   make([]PlaceResponse, 0, len(m.LoadingPlaces)),
		UnloadingPlaces: make([]UnloadingResponse, 0, len(m.UnloadingPlaces)),
		DepartureAt:     m.DepartureAt,
		Vehicle:         m.Vehicle,
		Trailers:        nonNil(m.Trailers),
		Drivers:         nonNil(m.Drivers),
		Clients:         nonNil(m.Clients),
		Insurance:       m.Insurance,
		CIOT:            m.CIOT,
		TollVouchers:    nonNil(m.TollVouchers),
		NFeCount:        m.NFeCount,
		CTeCount:        m.CTeCount,
		CargoValue:      m.CargoValue,
		GrossWeight:     m.GrossWeight,
		WeightUnit:      string(m.WeightUnit),
		AdditionalInfo:  m.AdditionalInfo,
		SubmittedAt:     m.SubmittedAt,
		Protocol:        m.Protocol,
		AuthorizedAt:    m.AuthorizedAt,
		RejectionCode:   m.RejectionCode,
		RejectionReason: m.RejectionReason,
		CancelProtocol:  m.CancelProtocol,
		CancelledAt:     m.CancelledAt,
		ClosureProtocol: m.ClosureProtocol,
		ClosureDate:     m.ClosureDate,
		ClosedAt:        m.ClosedAt,
		HasXML:          m.XMLObjectKey != "",
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.HasNumber() {
		resp.AccessKeyFormatted = m.FormattedAccessKey()
	}
	for _, p := range m.LoadingPlaces {
		resp.LoadingPlaces = append(resp.LoadingPlaces, placeResponse(p))
	}
	for _, u := range m.UnloadingPlaces {
		resp.UnloadingPlaces = append(resp.UnloadingPlaces, UnloadingResponse{
			PlaceResponse: placeResponse(u.Place),
			Documents:     nonNil(u.Documents),
		})
	}
	if m.ClosurePlace != nil {
		p := placeResponse(*m.ClosurePlace)
		resp.ClosurePlace = &p
	}
	for _, e := range m.Events {
		resp.Events = append(resp.Events, EventResponse{
			Kind:       string(e.Kind),
			Code:       e.Code,
			Sequence:   e.Sequence,
			Protocol:   e.Protocol,
			Payload:    e.Payload,
			OccurredAt: e.OccurredAt,
		})
	}
	return resp
}

func placeResponse(p manifest.Place) PlaceResponse {
	return PlaceResponse{Code: p.Code, Name: p.Name, UF: p.UF}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ManifestSummary is the list view of a manifest
type ManifestSummary struct {
	ID           uuid.UUID       `json:"id"`
	Series       int             `json:"series"`
	Number       int             `json:"number"`
	AccessKey    string          `json:"access_key,omitempty"`
	Status       string          `json:"status"`
	StartUF      string          `json:"start_uf"`
	EndUF        string          `json:"end_uf"`
	VehiclePlate string          `json:"vehicle_plate,omitempty"`
	CargoValue   decimal.Decimal `json:"cargo_value"`
	Documents    int             `json:"documents"`
	IssuedAt     *time.Time      `json:"issued_at,omitempty"`
	AuthorizedAt *time.Time      `json:"authorized_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ToManifestSummary converts a manifest to its list view
func ToManifestSummary(m *manifest.Manifest) ManifestSummary {
	s := ManifestSummary{
		ID:           m.ID,
		Series:       m.Series,
		Number:       m.Number,
		AccessKey:    m.AccessKey,
		Status:       string(m.Status),
		StartUF:      m.StartUF,
		EndUF:        m.EndUF,
		CargoValue:   m.CargoValue,
		Documents:    m.DocumentCount(),
		IssuedAt:     m.IssuedAt,
		AuthorizedAt: m.AuthorizedAt,
		CreatedAt:    m.CreatedAt,
	}
	if m.Vehicle != nil {
		s.VehiclePlate = m.Vehicle.Plate
	}
	return s
}

// TransmitResult is the outcome of a transmission. Replayed is set when the
// idempotency key had already been used for this manifest.
type TransmitResult struct {
	Manifest ManifestResponse `json:"manifest"`
	Code     string           `json:"code,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Replayed bool             `json:"replayed"`
}

// Pending reports whether SEFAZ has not answered yet
func (r TransmitResult) Pending() bool {
	return r.Manifest.Status == string(manifest.StatusPending)
}

// ConsultResponse is the SEFAZ view of a manifest next to the local one
type ConsultResponse struct {
	AccessKey   string    `json:"access_key"`
	Code        string    `json:"code"`
	Reason      string    `json:"reason"`
	SefazStatus string    `json:"sefaz_status"`
	LocalStatus string    `json:"local_status"`
	Protocol    string    `json:"protocol,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
	Reconciled  bool      `json:"reconciled"`
}

// ServiceStatusResponse is the health of the SEFAZ web service for a UF
type ServiceStatusResponse struct {
	UF          string    `json:"uf"`
	Environment string    `json:"environment"`
	Code        string    `json:"code"`
	Reason      string    `json:"reason"`
	Online      bool      `json:"online"`
	AvgSeconds  int       `json:"avg_seconds"`
	CheckedAt   time.Time `json:"checked_at"`
}

// DocumentFile is a rendered or archived document. URL is set when the
// object store could presign a download link.
type DocumentFile struct {
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Data        []byte     `json:"-"`
	URL         string     `json:"url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// UnclosedResponse lists authorized manifests that still need closure
type UnclosedResponse struct {
	Items []ManifestSummary `json:"items"`
	Total int               `json:"total"`
}
