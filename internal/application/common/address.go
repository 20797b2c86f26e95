// Package common holds the input and output shapes shared by the
// application services.
package common

import (
	"strings"

	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// AddressInput is the request form of a postal address
type AddressInput struct {
	Street           string `json:"street" binding:"required,max=60"`
	Number           string `json:"number" binding:"max=60"`
	Complement       string `json:"complement" binding:"max=60"`
	District         string `json:"district" binding:"required,max=60"`
	MunicipalityCode string `json:"municipality_code" binding:"required,len=7,numeric"`
	MunicipalityName string `json:"municipality_name" binding:"required,max=60"`
	UF               string `json:"uf" binding:"required,uf"`
	CEP              string `json:"cep" binding:"omitempty"`
	Phone            string `json:"phone" binding:"max=20"`
}

// ToAddress validates the input into a domain address
func (in AddressInput) ToAddress() (valueobject.Address, error) {
	uf, err := valueobject.ParseUFAllowExterior(in.UF)
	if err != nil {
		return valueobject.Address{}, err
	}
	mun, err := valueobject.NewMunicipality(in.MunicipalityCode, in.MunicipalityName, uf)
	if err != nil {
		return valueobject.Address{}, err
	}
	var opts []valueobject.AddressOption
	if strings.TrimSpace(in.Complement) != "" {
		opts = append(opts, valueobject.WithComplement(in.Complement))
	}
	if strings.TrimSpace(in.Phone) != "" {
		opts = append(opts, valueobject.WithPhone(in.Phone))
	}
	return valueobject.NewAddress(in.Street, in.Number, in.District, mun, in.CEP, opts...)
}

// AddressDTO is the response form of a postal address
type AddressDTO struct {
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

// ToAddressDTO converts a domain address; the zero address maps to nil
func ToAddressDTO(a valueobject.Address) *AddressDTO {
	if a.IsZero() {
		return nil
	}
	return &AddressDTO{
		Street:           a.Street(),
		Number:           a.Number(),
		Complement:       a.Complement(),
		District:         a.District(),
		MunicipalityCode: a.Municipality().Code(),
		MunicipalityName: a.Municipality().Name(),
		UF:               a.Municipality().UF().String(),
		CEP:              a.CEP(),
		Phone:            a.Phone(),
	}
}

// MunicipalityInput identifies an IBGE municipality
type MunicipalityInput struct {
	Code string `json:"code" binding:"required,len=7,numeric"`
	Name string `json:"name" binding:"required,max=60"`
	UF   string `json:"uf" binding:"required,uf"`
}

// ToMunicipality validates the input
func (in MunicipalityInput) ToMunicipality() (valueobject.Municipality, error) {
	uf, err := valueobject.ParseUFAllowExterior(in.UF)
	if err != nil {
		return valueobject.Municipality{}, err
	}
	return valueobject.NewMunicipality(in.Code, in.Name, uf)
}

// Sanitize trims a free text field the way fiscal documents expect it
func Sanitize(s string) string {
	return valueobject.SanitizeText(s)
}

// SanitizePtr sanitizes an optional field, keeping nil as nil
func SanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := valueobject.SanitizeText(*s)
	return &v
}
