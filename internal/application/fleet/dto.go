package fleet

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ListFilter holds the paging options shared by fleet listings
type ListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f ListFilter) toShared() shared.Filter {
	return shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   common.Sanitize(f.Search),
	}.Normalize()
}

// =============================================================================
// Vehicle DTOs
// =============================================================================

// VehicleInput carries the registration data of a vehicle
type VehicleInput struct {
	Plate        string `json:"plate" binding:"required,plate"`
	Renavam      string `json:"renavam" binding:"omitempty,numeric"`
	InternalCode string `json:"internal_code" binding:"max=10"`
	TareKg       int    `json:"tare_kg" binding:"required,min=1,max=999999"`
	CapacityKg   int    `json:"capacity_kg" binding:"min=0,max=999999"`
	CapacityM3   int    `json:"capacity_m3" binding:"min=0,max=999"`
	WheelType    string `json:"wheel_type" binding:"omitempty,len=2,numeric"`
	BodyType     string `json:"body_type" binding:"required,len=2,numeric"`
	LicensingUF  string `json:"licensing_uf" binding:"required,uf"`
}

func (in VehicleInput) toSpec() fleet.VehicleSpec {
	return fleet.VehicleSpec{
		Plate:        in.Plate,
		Renavam:      in.Renavam,
		InternalCode: in.InternalCode,
		TareKg:       in.TareKg,
		CapacityKg:   in.CapacityKg,
		CapacityM3:   in.CapacityM3,
		WheelType:    in.WheelType,
		BodyType:     in.BodyType,
		LicensingUF:  in.LicensingUF,
	}
}

// OwnerInput identifies the third-party owner of a leased vehicle
type OwnerInput struct {
	Document  string `json:"document" binding:"required,taxdoc"`
	Name      string `json:"name" binding:"required,max=60"`
	RNTRC     string `json:"rntrc" binding:"required,len=8,numeric"`
	IE        string `json:"ie" binding:"max=14"`
	UF        string `json:"uf" binding:"required,uf"`
	OwnerType int    `json:"owner_type" binding:"min=0,max=2"`
}

// CreateVehicleRequest represents a request to register a vehicle
type CreateVehicleRequest struct {
	VehicleInput
	Kind      string      `json:"kind" binding:"required,oneof=traction trailer"`
	Owner     *OwnerInput `json:"owner"`
	CreatedBy uuid.UUID   `json:"-"`
}

// UpdateVehicleRequest represents a request to update a vehicle. A nil
// owner turns the vehicle back into an own vehicle.
type UpdateVehicleRequest struct {
	VehicleInput
	Owner *OwnerInput `json:"owner"`
}

// VehicleListFilter narrows a vehicle listing
type VehicleListFilter struct {
	ListFilter
	Kind   string `form:"kind" binding:"omitempty,oneof=traction trailer"`
	Status string `form:"status" binding:"omitempty,oneof=active maintenance inactive"`
}

// VehicleResponse represents a vehicle in API responses
type VehicleResponse struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Plate         string    `json:"plate"`
	Renavam       string    `json:"renavam,omitempty"`
	InternalCode  string    `json:"internal_code,omitempty"`
	Kind          string    `json:"kind"`
	TareKg        int       `json:"tare_kg"`
	CapacityKg    int       `json:"capacity_kg"`
	CapacityM3    int       `json:"capacity_m3"`
	WheelType     string    `json:"wheel_type,omitempty"`
	WheelTypeName string    `json:"wheel_type_name,omitempty"`
	BodyType      string    `json:"body_type"`
	BodyTypeName  string    `json:"body_type_name"`
	LicensingUF   string    `json:"licensing_uf"`
	Ownership     string    `json:"ownership"`
	OwnerDocument string    `json:"owner_document,omitempty"`
	OwnerName     string    `json:"owner_name,omitempty"`
	OwnerRNTRC    string    `json:"owner_rntrc,omitempty"`
	OwnerIE       string    `json:"owner_ie,omitempty"`
	OwnerUF       string    `json:"owner_uf,omitempty"`
	OwnerType     *int      `json:"owner_type,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

// ToVehicleResponse converts a domain Vehicle to VehicleResponse
func ToVehicleResponse(v *fleet.Vehicle) VehicleResponse {
	resp := VehicleResponse{
		ID:            v.ID,
		TenantID:      v.TenantID,
		Plate:         v.Plate,
		Renavam:       v.Renavam,
		InternalCode:  v.InternalCode,
		Kind:          string(v.Kind),
		TareKg:        v.TareKg,
		CapacityKg:    v.CapacityKg,
		CapacityM3:    v.CapacityM3,
		WheelType:     v.WheelType,
		WheelTypeName: v.WheelTypeName(),
		BodyType:      v.BodyType,
		BodyTypeName:  v.BodyTypeName(),
		LicensingUF:   v.LicensingUF,
		Ownership:     string(v.Ownership),
		Status:        string(v.Status),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		Version:       v.Version,
	}
	if v.Ownership == fleet.OwnershipThirdParty {
		ownerType := v.OwnerType
		resp.OwnerDocument = v.OwnerDocument
		resp.OwnerName = v.OwnerName
		resp.OwnerRNTRC = v.OwnerRNTRC
		resp.OwnerIE = v.OwnerIE
		resp.OwnerUF = v.OwnerUF
		resp.OwnerType = &ownerType
	}
	return resp
}

// =============================================================================
// Driver DTOs
// =============================================================================

// CreateDriverRequest represents a request to register a driver
type CreateDriverRequest struct {
	Name         string    `json:"name" binding:"required,min=2,max=60"`
	CPF          string    `json:"cpf" binding:"required,cpf"`
	CNHNumber    string    `json:"cnh_number" binding:"required"`
	CNHCategory  string    `json:"cnh_category" binding:"required,max=2"`
	CNHExpiresAt time.Time `json:"cnh_expires_at" binding:"required"`
	Phone        string    `json:"phone" binding:"max=20"`
	CreatedBy    uuid.UUID `json:"-"`
}

// UpdateDriverRequest represents a request to update a driver; the CPF is
// immutable
type UpdateDriverRequest struct {
	Name         string    `json:"name" binding:"required,min=2,max=60"`
	CNHNumber    string    `json:"cnh_number" binding:"required"`
	CNHCategory  string    `json:"cnh_category" binding:"required,max=2"`
	CNHExpiresAt time.Time `json:"cnh_expires_at" binding:"required"`
	Phone        string    `json:"phone" binding:"max=20"`
}

// DriverListFilter narrows a driver listing
type DriverListFilter struct {
	ListFilter
	Status string `form:"status" binding:"omitempty,oneof=active inactive"`
}

// DriverResponse represents a driver in API responses
type DriverResponse struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Name         string    `json:"name"`
	CPF          string    `json:"cpf"`
	CNHNumber    string    `json:"cnh_number"`
	CNHCategory  string    `json:"cnh_category"`
	CNHExpiresAt time.Time `json:"cnh_expires_at"`
	CNHValid     bool      `json:"cnh_valid"`
	Phone        string    `json:"phone,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// ToDriverResponse converts a domain Driver; now decides CNHValid
func ToDriverResponse(d *fleet.Driver, now time.Time) DriverResponse {
	return DriverResponse{
		ID:           d.ID,
		TenantID:     d.TenantID,
		Name:         d.Name,
		CPF:          d.CPF,
		CNHNumber:    d.CNHNumber,
		CNHCategory:  d.CNHCategory,
		CNHExpiresAt: d.CNHExpiresAt,
		CNHValid:     d.CNHValidAt(now),
		Phone:        d.Phone,
		Status:       string(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Version:      d.Version,
	}
}

// =============================================================================
// Maintenance DTOs
// =============================================================================

// CreateMaintenanceOrderRequest represents a request to open a maintenance order
type CreateMaintenanceOrderRequest struct {
	VehicleID    uuid.UUID  `json:"vehicle_id" binding:"required"`
	SupplierID   *uuid.UUID `json:"supplier_id"`
	Kind         string     `json:"kind" binding:"required,oneof=preventive corrective"`
	Description  string     `json:"description" binding:"required,max=2000"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	CreatedBy    uuid.UUID  `json:"-"`
}

// CompleteMaintenanceOrderRequest closes an order
type CompleteMaintenanceOrderRequest struct {
	Cost     decimal.Decimal `json:"cost"`
	Odometer int             `json:"odometer" binding:"min=0"`
}

// CancelMaintenanceOrderRequest aborts an order
type CancelMaintenanceOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// MaintenanceListFilter narrows a maintenance order listing
type MaintenanceListFilter struct {
	ListFilter
	VehicleID string `form:"vehicle_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=open in_progress completed cancelled"`
}

// MaintenanceOrderResponse represents a maintenance order in API responses
type MaintenanceOrderResponse struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	VehicleID    uuid.UUID       `json:"vehicle_id"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
	Kind         string          `json:"kind"`
	Description  string          `json:"description"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	OpenedAt     time.Time       `json:"opened_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Odometer     int             `json:"odometer"`
	Cost         decimal.Decimal `json:"cost"`
	Status       string          `json:"status"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"version"`
}

// ToMaintenanceOrderResponse converts a domain MaintenanceOrder
func ToMaintenanceOrderResponse(o *fleet.MaintenanceOrder) MaintenanceOrderResponse {
	return MaintenanceOrderResponse{
		ID:           o.ID,
		TenantID:     o.TenantID,
		VehicleID:    o.VehicleID,
		SupplierID:   o.SupplierID,
		Kind:         string(o.Kind),
		Description:  o.Description,
		ScheduledFor: o.ScheduledFor,
		OpenedAt:     o.OpenedAt,
		StartedAt:    o.StartedAt,
		CompletedAt:  o.CompletedAt,
		Odometer:     o.Odometer,
		Cost:         o.Cost,
		Status:       string(o.Status),
		CancelReason: o.CancelReason,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Version:      o.Version,
	}
}

// =============================================================================
// Trip DTOs
// =============================================================================

// CreateTripRequest represents a request to plan a trip
type CreateTripRequest struct {
	VehicleID        uuid.UUID                `json:"vehicle_id" binding:"required"`
	TrailerIDs       []uuid.UUID              `json:"trailer_ids" binding:"max=3"`
	DriverIDs        []uuid.UUID              `json:"driver_ids" binding:"required,min=1,max=10"`
	Origin           common.MunicipalityInput `json:"origin" binding:"required"`
	Destination      common.MunicipalityInput `json:"destination" binding:"required"`
	PlannedDeparture time.Time                `json:"planned_departure" binding:"required"`
	Notes            string                   `json:"notes" binding:"max=2000"`
	CreatedBy        uuid.UUID                `json:"-"`
}

// OdometerRequest carries an odometer reading for trip start and finish
type OdometerRequest struct {
	Odometer int `json:"odometer" binding:"min=0"`
}

// LinkManifestRequest attaches a manifest to a trip
type LinkManifestRequest struct {
	ManifestID uuid.UUID `json:"manifest_id" binding:"required"`
}

// TripListFilter narrows a trip listing
type TripListFilter struct {
	ListFilter
	VehicleID string `form:"vehicle_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=planned in_progress completed cancelled"`
}

// TripResponse represents a trip in API responses
type TripResponse struct {
	ID               uuid.UUID                `json:"id"`
	TenantID         uuid.UUID                `json:"tenant_id"`
	VehicleID        uuid.UUID                `json:"vehicle_id"`
	TrailerIDs       []uuid.UUID              `json:"trailer_ids"`
	DriverIDs        []uuid.UUID              `json:"driver_ids"`
	Origin           common.MunicipalityInput `json:"origin"`
	Destination      common.MunicipalityInput `json:"destination"`
	PlannedDeparture time.Time                `json:"planned_departure"`
	StartedAt        *time.Time               `json:"started_at,omitempty"`
	FinishedAt       *time.Time               `json:"finished_at,omitempty"`
	OdometerStart    int                      `json:"odometer_start"`
	OdometerEnd      int                      `json:"odometer_end"`
	DistanceKm       int                      `json:"distance_km"`
	Status           string                   `json:"status"`
	ManifestID       *uuid.UUID               `json:"manifest_id,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	Version          int                      `json:"version"`
}

// ToTripResponse converts a domain Trip to TripResponse
func ToTripResponse(t *fleet.Trip) TripResponse {
	trailers := t.TrailerIDs
	if trailers == nil {
		trailers = []uuid.UUID{}
	}
	return TripResponse{
		ID:               t.ID,
		TenantID:         t.TenantID,
		VehicleID:        t.VehicleID,
		TrailerIDs:       trailers,
		DriverIDs:        t.DriverIDs,
		Origin:           common.MunicipalityInput{Code: t.OriginCode, Name: t.OriginName, UF: t.OriginUF},
		Destination:      common.MunicipalityInput{Code: t.DestinationCode, Name: t.DestinationName, UF: t.DestinationUF},
		PlannedDeparture: t.PlannedDeparture,
		StartedAt:        t.StartedAt,
		FinishedAt:       t.FinishedAt,
		OdometerStart:    t.OdometerStart,
		OdometerEnd:      t.OdometerEnd,
		DistanceKm:       t.Distance(),
		Status:           string(t.Status),
		ManifestID:       t.ManifestID,
		Notes:            t.Notes,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		Version:          t.Version,
	}
}

// optionalUUID parses an optional query identifier; blank or malformed
// values mean no filter
func optionalUUID(s string) *uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
