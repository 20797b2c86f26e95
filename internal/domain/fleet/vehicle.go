package fleet

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// VehicleKind tells a tractor unit from a trailer
type VehicleKind string

const (
	VehicleKindTraction VehicleKind = "traction"
	VehicleKindTrailer  VehicleKind = "trailer"
)

// VehicleStatus represents the availability of a vehicle
type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
	VehicleStatusInactive    VehicleStatus = "inactive"
)

// Ownership tells whether the vehicle belongs to the tenant
type Ownership string

const (
	OwnershipOwn        Ownership = "own"
	OwnershipThirdParty Ownership = "third_party"
)

// Wheel types (tpRod), only meaningful for traction units
var wheelTypes = map[string]string{
	"01": "Truck",
	"02": "Toco",
	"03": "Cavalo Mecanico",
	"04": "VAN",
	"05": "Utilitario",
	"06": "Outros",
}

// Body types (tpCar)
var bodyTypes = map[string]string{
	"00": "Nao aplicavel",
	"01": "Aberta",
	"02": "Fechada/Bau",
	"03": "Granelera",
	"04": "Porta Container",
	"05": "Sider",
}

// Third-party owner types (tpProp)
const (
	OwnerTypeTACAggregated  = 0
	OwnerTypeTACIndependent = 1
	OwnerTypeOther          = 2
)

var renavamPattern = regexp.MustCompile(`^([0-9]{9}|[0-9]{11})$`)

// VehicleSpec holds the registration data accepted by NewVehicle and Update
type VehicleSpec struct {
	Plate        string
	Renavam      string
	InternalCode string
	TareKg       int
	CapacityKg   int
	CapacityM3   int
	WheelType    string
	BodyType     string
	LicensingUF  string
}

// Vehicle is a traction unit or trailer in the tenant's fleet
type Vehicle struct {
	shared.TenantAggregateRoot
	Plate         string        `gorm:"type:varchar(7);not null;index"`
	Renavam       string        `gorm:"type:varchar(11)"`
	InternalCode  string        `gorm:"type:varchar(10)"`
	Kind          VehicleKind   `gorm:"type:varchar(20);not null"`
	TareKg        int           `gorm:"not null"`
	CapacityKg    int           `gorm:"not null;default:0"`
	CapacityM3    int           `gorm:"not null;default:0"`
	WheelType     string        `gorm:"type:varchar(2)"`
	BodyType      string        `gorm:"type:varchar(2);not null"`
	LicensingUF   string        `gorm:"type:varchar(2);not null"`
	Ownership     Ownership     `gorm:"type:varchar(20);not null;default:'own'"`
	OwnerDocument string        `gorm:"type:varchar(14)"`
	OwnerName     string        `gorm:"type:varchar(60)"`
	OwnerRNTRC    string        `gorm:"type:varchar(8)"`
	OwnerIE       string        `gorm:"type:varchar(14)"`
	OwnerUF       string        `gorm:"type:varchar(2)"`
	OwnerType     int           `gorm:"not null;default:0"`
	Status        VehicleStatus `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (Vehicle) TableName() string {
	return "vehicles"
}

// NewVehicle registers an own, active vehicle
func NewVehicle(tenantID uuid.UUID, kind VehicleKind, spec VehicleSpec) (*Vehicle, error) {
	if kind != VehicleKindTraction && kind != VehicleKindTrailer {
		return nil, shared.NewDomainError("INVALID_VEHICLE_KIND", "Vehicle kind must be traction or trailer")
	}
	v := &Vehicle{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Kind:                kind,
		Ownership:           OwnershipOwn,
		Status:              VehicleStatusActive,
	}
	if err := v.apply(spec); err != nil {
		return nil, err
	}
	v.AddDomainEvent(NewVehicleEvent(EventTypeVehicleRegistered, v))
	return v, nil
}

// Update replaces the registration data; the kind cannot change
func (v *Vehicle) Update(spec VehicleSpec) error {
	if err := v.apply(spec); err != nil {
		return err
	}
	v.MarkModified()
	v.AddDomainEvent(NewVehicleEvent(EventTypeVehicleUpdated, v))
	return nil
}

func (v *Vehicle) apply(spec VehicleSpec) error {
	plate, err := valueobject.NewPlate(spec.Plate)
	if err != nil {
		return err
	}
	renavam := valueobject.OnlyDigits(spec.Renavam)
	if renavam != "" && !renavamPattern.MatchString(renavam) {
		return shared.NewDomainError("INVALID_RENAVAM", "RENAVAM must have 9 or 11 digits")
	}
	if spec.TareKg <= 0 || spec.TareKg > 999999 {
		return shared.NewDomainError("INVALID_TARE", "Tare must be between 1 and 999999 kg")
	}
	if spec.CapacityKg < 0 || spec.CapacityKg > 999999 || spec.CapacityM3 < 0 || spec.CapacityM3 > 999 {
		return shared.NewDomainError("INVALID_CAPACITY", "Capacity is out of range")
	}
	if _, ok := bodyTypes[spec.BodyType]; !ok {
		return shared.NewDomainError("INVALID_BODY_TYPE", "Body type must be between 00 and 05")
	}
	wheel := spec.WheelType
	if v.Kind == VehicleKindTraction {
		if _, ok := wheelTypes[wheel]; !ok {
			return shared.NewDomainError("INVALID_WHEEL_TYPE", "Wheel type must be between 01 and 06")
		}
	} else {
		wheel = ""
	}
	uf, err := valueobject.ParseUF(spec.LicensingUF)
	if err != nil {
		return err
	}
	code := valueobject.SanitizeUpper(spec.InternalCode)
	if len(code) > 10 {
		return shared.NewDomainError("INVALID_INTERNAL_CODE", "Internal code cannot exceed 10 characters")
	}

	v.Plate = plate.String()
	v.Renavam = renavam
	v.InternalCode = code
	v.TareKg = spec.TareKg
	v.CapacityKg = spec.CapacityKg
	v.CapacityM3 = spec.CapacityM3
	v.WheelType = wheel
	v.BodyType = spec.BodyType
	v.LicensingUF = uf.String()
	return nil
}

// SetThirdPartyOwner marks the vehicle as leased from another carrier
func (v *Vehicle) SetThirdPartyOwner(document, name, rntrc, ie, uf string, ownerType int) error {
	doc, err := valueobject.NewTaxDocument(document)
	if err != nil {
		return err
	}
	name = valueobject.SanitizeText(name)
	if name == "" || len(name) > 60 {
		return shared.NewDomainError("INVALID_OWNER_NAME", "Owner name is required and cannot exceed 60 characters")
	}
	rntrc = valueobject.OnlyDigits(rntrc)
	if len(rntrc) != 8 {
		return shared.NewDomainError("INVALID_RNTRC", "Owner RNTRC must have 8 digits")
	}
	ownerUF, err := valueobject.ParseUF(uf)
	if err != nil {
		return err
	}
	if ownerType < OwnerTypeTACAggregated || ownerType > OwnerTypeOther {
		return shared.NewDomainError("INVALID_OWNER_TYPE", "Owner type must be 0, 1 or 2")
	}

	v.Ownership = OwnershipThirdParty
	v.OwnerDocument = doc.String()
	v.OwnerName = name
	v.OwnerRNTRC = rntrc
	v.OwnerIE = strings.ToUpper(strings.TrimSpace(ie))
	v.OwnerUF = ownerUF.String()
	v.OwnerType = ownerType
	v.MarkModified()
	return nil
}

// SetOwnOwnership clears third-party owner data
func (v *Vehicle) SetOwnOwnership() {
	v.Ownership = OwnershipOwn
	v.OwnerDocument = ""
	v.OwnerName = ""
	v.OwnerRNTRC = ""
	v.OwnerIE = ""
	v.OwnerUF = ""
	v.OwnerType = 0
	v.MarkModified()
}

func (v *Vehicle) Activate() error {
	if v.Status == VehicleStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Vehicle is already active")
	}
	if v.Status == VehicleStatusMaintenance {
		return shared.NewDomainError("IN_MAINTENANCE", "Vehicle has open maintenance orders")
	}
	v.Status = VehicleStatusActive
	v.MarkModified()
	v.AddDomainEvent(NewVehicleEvent(EventTypeVehicleStatusChanged, v))
	return nil
}

func (v *Vehicle) Deactivate() error {
	if v.Status == VehicleStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Vehicle is already inactive")
	}
	v.Status = VehicleStatusInactive
	v.MarkModified()
	v.AddDomainEvent(NewVehicleEvent(EventTypeVehicleStatusChanged, v))
	return nil
}

// EnterMaintenance is called when a maintenance order is opened
func (v *Vehicle) EnterMaintenance() error {
	if v.Status == VehicleStatusInactive {
		return shared.NewDomainError("VEHICLE_INACTIVE", "Inactive vehicles cannot receive maintenance orders")
	}
	if v.Status == VehicleStatusMaintenance {
		return nil
	}
	v.Status = VehicleStatusMaintenance
	v.MarkModified()
	v.AddDomainEvent(NewVehicleEvent(EventTypeVehicleStatusChanged, v))
	return nil
}

// LeaveMaintenance is called when the last open maintenance order is closed
func (v *Vehicle) LeaveMaintenance() {
	if v.Status != VehicleStatusMaintenance {
		return
	}
	v.Status = VehicleStatusActive
	v.MarkModified()
	v.AddDomainEvent(NewVehicleEvent(EventTypeVehicleStatusChanged, v))
}

func (v *Vehicle) IsActive() bool   { return v.Status == VehicleStatusActive }
func (v *Vehicle) IsTraction() bool { return v.Kind == VehicleKindTraction }
func (v *Vehicle) IsTrailer() bool  { return v.Kind == VehicleKindTrailer }

// WheelTypeName returns the description of the wheel type code
func (v *Vehicle) WheelTypeName() string { return wheelTypes[v.WheelType] }

// BodyTypeName returns the description of the body type code
func (v *Vehicle) BodyTypeName() string { return bodyTypes[v.BodyType] }
