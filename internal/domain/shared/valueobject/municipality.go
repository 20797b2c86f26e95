package valueobject

import (
	"strconv"

	"github.com/mdfe/backend/internal/domain/shared"
)

// ExteriorMunicipalityCode is the IBGE placeholder for foreign locations
const ExteriorMunicipalityCode = "9999999"

// Municipality is an IBGE municipality: 7-digit code, name and state
type Municipality struct {
	code string
	name string
	uf   UF
}

// NewMunicipality validates that code has 7 digits and that its first two
// digits are the IBGE code of uf.
func NewMunicipality(code, name string, uf UF) (Municipality, error) {
	code = OnlyDigits(code)
	name = SanitizeUpper(name)
	if name == "" {
		return Municipality{}, shared.NewDomainError("INVALID_MUNICIPALITY", "Municipality name is required")
	}
	if len(name) > 60 {
		return Municipality{}, shared.NewDomainError("INVALID_MUNICIPALITY", "Municipality name cannot exceed 60 characters")
	}
	if uf == UFExterior {
		if code != ExteriorMunicipalityCode {
			return Municipality{}, shared.NewDomainError("INVALID_MUNICIPALITY", "Foreign municipality must use code 9999999")
		}
		return Municipality{code: code, name: name, uf: uf}, nil
	}
	if !uf.IsValid() {
		return Municipality{}, shared.NewDomainError("INVALID_UF", "Invalid UF: "+uf.String())
	}
	if len(code) != 7 {
		return Municipality{}, shared.NewDomainError("INVALID_MUNICIPALITY", "Municipality code must have 7 digits")
	}
	if code[:2] != strconv.Itoa(uf.Code()) {
		return Municipality{}, shared.NewDomainError("INVALID_MUNICIPALITY", "Municipality code does not belong to UF "+uf.String())
	}
	return Municipality{code: code, name: name, uf: uf}, nil
}

func (m Municipality) Code() string { return m.code }
func (m Municipality) Name() string { return m.name }
func (m Municipality) UF() UF       { return m.uf }
func (m Municipality) IsZero() bool { return m.code == "" }
