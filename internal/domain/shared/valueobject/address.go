package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/mdfe/backend/internal/domain/shared"
)

// Address is an immutable Brazilian postal address.
// It is persisted as a JSON document.
type Address struct {
	street       string
	number       string
	complement   string
	district     string
	municipality Municipality
	cep          string
	phone        string
}

// AddressOption is a functional option for configuring Address
type AddressOption func(*Address)

// WithComplement sets the complement (apartment, block, etc.)
func WithComplement(complement string) AddressOption {
	return func(a *Address) {
		a.complement = SanitizeText(complement)
	}
}

// WithPhone attaches a contact phone, digits only
func WithPhone(phone string) AddressOption {
	return func(a *Address) {
		a.phone = OnlyDigits(phone)
	}
}

// NewAddress creates a new Address. Street, district and municipality are
// required; a missing number is stored as "SN" (sem número).
func NewAddress(street, number, district string, municipality Municipality, cep string, opts ...AddressOption) (Address, error) {
	street = SanitizeText(street)
	number = SanitizeText(number)
	district = SanitizeText(district)
	cep = OnlyDigits(cep)

	if street == "" || len(street) > 60 {
		return Address{}, shared.NewDomainError("INVALID_ADDRESS", "Street is required and cannot exceed 60 characters")
	}
	if district == "" || len(district) > 60 {
		return Address{}, shared.NewDomainError("INVALID_ADDRESS", "District is required and cannot exceed 60 characters")
	}
	if municipality.IsZero() {
		return Address{}, shared.NewDomainError("INVALID_ADDRESS", "Municipality is required")
	}
	if cep != "" && len(cep) != 8 {
		return Address{}, shared.NewDomainError("INVALID_CEP", "CEP must have 8 digits")
	}
	if number == "" {
		number = "SN"
	}

	addr := Address{
		street:       street,
		number:       number,
		district:     district,
		municipality: municipality,
		cep:          cep,
	}
	for _, opt := range opts {
		opt(&addr)
	}
	if len(addr.complement) > 60 {
		return Address{}, shared.NewDomainError("INVALID_ADDRESS", "Complement cannot exceed 60 characters")
	}
	return addr, nil
}

func (a Address) Street() string             { return a.street }
func (a Address) Number() string             { return a.number }
func (a Address) Complement() string         { return a.complement }
func (a Address) District() string           { return a.district }
func (a Address) Municipality() Municipality { return a.municipality }
func (a Address) CEP() string                { return a.cep }
func (a Address) Phone() string              { return a.phone }
func (a Address) IsZero() bool               { return a.street == "" }

// FormattedCEP returns the CEP as 00000-000
func (a Address) FormattedCEP() string {
	if len(a.cep) != 8 {
		return a.cep
	}
	return a.cep[:5] + "-" + a.cep[5:]
}

type addressJSON struct {
	Street           string `json:"street"`
	Number           string `json:"number"`
	Complement       string `json:"complement,omitempty"`
	District         string `json:"district"`
	MunicipalityCode string `json:"municipality_code"`
	MunicipalityName string `json:"municipality_name"`
	UF               string `json:"uf"`
	CEP              string `json:"cep,omitempty"`
	Phone            string `json:"phone,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressJSON{
		Street:           a.street,
		Number:           a.number,
		Complement:       a.complement,
		District:         a.district,
		MunicipalityCode: a.municipality.code,
		MunicipalityName: a.municipality.name,
		UF:               a.municipality.uf.String(),
		CEP:              a.cep,
		Phone:            a.phone,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Stored values are trusted and
// are not re-validated.
func (a *Address) UnmarshalJSON(data []byte) error {
	var raw addressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Address{
		street:     raw.Street,
		number:     raw.Number,
		complement: raw.Complement,
		district:   raw.District,
		municipality: Municipality{
			code: raw.MunicipalityCode,
			name: raw.MunicipalityName,
			uf:   UF(raw.UF),
		},
		cep:   raw.CEP,
		phone: raw.Phone,
	}
	return nil
}

// Value implements driver.Valuer
func (a Address) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *Address) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return a.UnmarshalJSON(v)
	case string:
		return a.UnmarshalJSON([]byte(v))
	default:
		return errors.New("address: unsupported scan type")
	}
}
