package valueobject

import (
	"sort"
	"strings"

	"github.com/mdfe/backend/internal/domain/shared"
)

// UF is a Brazilian federative unit (state) abbreviation
type UF string

// UFExterior is used for addresses outside Brazil
const UFExterior UF = "EX"

var ufCodes = map[UF]int{
	"RO": 11, "AC": 12, "AM": 13, "RR": 14, "PA": 15, "AP": 16, "TO": 17,
	"MA": 21, "PI": 22, "CE": 23, "RN": 24, "PB": 25, "PE": 26, "AL": 27, "SE": 28, "BA": 29,
	"MG": 31, "ES": 32, "RJ": 33, "SP": 35,
	"PR": 41, "SC": 42, "RS": 43,
	"MS": 50, "MT": 51, "GO": 52, "DF": 53,
}

// ParseUF validates and normalizes a state abbreviation. EX is rejected;
// use ParseUFAllowExterior where foreign addresses are allowed.
func ParseUF(s string) (UF, error) {
	uf := UF(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := ufCodes[uf]; !ok {
		return "", shared.NewDomainError("INVALID_UF", "Invalid UF: "+s)
	}
	return uf, nil
}

// ParseUFAllowExterior is ParseUF that also accepts EX
func ParseUFAllowExterior(s string) (UF, error) {
	if UF(strings.ToUpper(strings.TrimSpace(s))) == UFExterior {
		return UFExterior, nil
	}
	return ParseUF(s)
}

// UFFromCode returns the UF for an IBGE state code
func UFFromCode(code int) (UF, error) {
	for uf, c := range ufCodes {
		if c == code {
			return uf, nil
		}
	}
	return "", shared.NewDomainError("INVALID_UF", "Unknown IBGE state code")
}

// Code returns the IBGE numeric code of the state, 99 for EX and 0 if unknown
func (u UF) Code() int {
	if u == UFExterior {
		return 99
	}
	return ufCodes[u]
}

// IsValid reports whether u is one of the 27 states
func (u UF) IsValid() bool {
	_, ok := ufCodes[u]
	return ok
}

func (u UF) String() string { return string(u) }

// AllUFs returns the 27 states sorted alphabetically
func AllUFs() []UF {
	out := make([]UF, 0, len(ufCodes))
	for uf := range ufCodes {
		out = append(out, uf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
