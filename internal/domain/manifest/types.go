package manifest

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a manifest
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
	StatusClosed     Status = "closed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusAuthorized, StatusRejected, StatusCancelled, StatusClosed:
		return true
	}
	return false
}

// Editable reports whether the content may still change
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

// EmissionType is tpEmis
type EmissionType int

const (
	EmissionNormal      EmissionType = 1
	EmissionContingency EmissionType = 2
)

func (e EmissionType) IsValid() bool {
	return e == EmissionNormal || e == EmissionContingency
}

// Modal is the transport mode; only road is supported
type Modal int

const ModalRoad Modal = 1

// WeightUnit is the unit of the gross cargo weight
type WeightUnit string

const (
	WeightUnitKG  WeightUnit = "KG"
	WeightUnitTON WeightUnit = "TON"
)

func (u WeightUnit) IsValid() bool {
	return u == WeightUnitKG || u == WeightUnitTON
}

// Code returns the cUnid value: 01 for KG, 02 for TON
func (u WeightUnit) Code() string {
	if u == WeightUnitTON {
		return "02"
	}
	return "01"
}

// InsuranceResponsible is respSeg
type InsuranceResponsible int

const (
	InsuranceByEmitter  InsuranceResponsible = 1
	InsuranceByContract InsuranceResponsible = 2
)

const (
	MaxRouteUFs       = 25
	MaxLoadingPlaces  = 50
	MaxTrailers       = 3
	MaxDrivers        = 10
	MaxEndorsements   = 20
	MaxAdditionalInfo = 5000
)

// Place is a municipality reference stored with the manifest
type Place struct {
	Code string `json:"code"`
	Name string `json:"name"`
	UF   string `json:"uf"`
}

// PlaceOf converts a validated municipality
func PlaceOf(m valueobject.Municipality) Place {
	return Place{Code: m.Code(), Name: m.Name(), UF: m.UF().String()}
}

// FiscalDocument is an NF-e or CT-e linked to an unloading place
type FiscalDocument struct {
	Model int    `json:"model"`
	Key   string `json:"key"`
}

// UnloadingPlace is a municipality of unloading with its documents
type UnloadingPlace struct {
	Place
	Documents []FiscalDocument `json:"documents"`
}

// VehicleRef is the snapshot of a vehicle taken when it is put on a manifest
type VehicleRef struct {
	VehicleID   uuid.UUID `json:"vehicle_id"`
	Plate       string    `json:"plate"`
	Renavam     string    `json:"renavam,omitempty"`
	TareKg      int       `json:"tare_kg"`
	CapacityKg  int       `json:"capacity_kg"`
	CapacityM3  int       `json:"capacity_m3"`
	WheelType   string    `json:"wheel_type,omitempty"`
	BodyType    string    `json:"body_type"`
	LicensingUF string    `json:"licensing_uf"`
}

// DriverRef is the snapshot of a driver (condutor)
type DriverRef struct {
	DriverID uuid.UUID `json:"driver_id"`
	Name     string    `json:"name"`
	CPF      string    `json:"cpf"`
}

// ClientRef is a contracting party (infContratante)
type ClientRef struct {
	ClientID uuid.UUID `json:"client_id"`
	Name     string    `json:"name"`
	Document string    `json:"document"`
}

// Insurance holds the cargo insurance data (seg)
type Insurance struct {
	Responsible         InsuranceResponsible `json:"responsible"`
	ResponsibleDocument string               `json:"responsible_document,omitempty"`
	InsurerID           *uuid.UUID           `json:"insurer_id,omitempty"`
	InsurerName         string               `json:"insurer_name,omitempty"`
	InsurerCNPJ         string               `json:"insurer_cnpj,omitempty"`
	PolicyNumber        string               `json:"policy_number,omitempty"`
	Endorsements        []string             `json:"endorsements,omitempty"`
}

// TollVoucher is a vale-pedagio entry
type TollVoucher struct {
	SupplierCNPJ  string          `json:"supplier_cnpj"`
	VoucherNumber string          `json:"voucher_number"`
	Value         decimal.Decimal `json:"value"`
}

// Unloading is the input form of an unloading place
type Unloading struct {
	Municipality valueobject.Municipality
	DocumentKeys []string
}

// Content is the editable body of a draft manifest
type Content struct {
	EmissionType    EmissionType
	StartUF         valueobject.UF
	EndUF           valueobject.UF
	RouteUFs        []valueobject.UF
	LoadingPlaces   []valueobject.Municipality
	UnloadingPlaces []Unloading
	DepartureAt     *time.Time
	Vehicle         *VehicleRef
	Trailers        []VehicleRef
	Drivers         []DriverRef
	Clients         []ClientRef
	Insurance       *Insurance
	CargoValue      decimal.Decimal
	GrossWeight     decimal.Decimal
	WeightUnit      WeightUnit
	CIOT            string
	TollVouchers    []TollVoucher
	AdditionalInfo  string
}
