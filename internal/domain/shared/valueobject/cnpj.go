package valueobject

import (
	"fmt"
	"strconv"

	"github.com/mdfe/backend/internal/domain/shared"
)

// CNPJ is a validated Brazilian company registry number (14 digits)
type CNPJ struct {
	value string
}

// NewCNPJ parses a CNPJ with or without punctuation and validates its check digits
func NewCNPJ(s string) (CNPJ, error) {
	digits := OnlyDigits(s)
	if len(digits) != 14 {
		return CNPJ{}, shared.NewDomainError("INVALID_CNPJ", "CNPJ must have 14 digits")
	}
	if allSameDigit(digits) {
		return CNPJ{}, shared.NewDomainError("INVALID_CNPJ", "CNPJ cannot have all digits equal")
	}
	d1 := mod11(digits[:12])
	d2 := mod11(digits[:12] + strconv.Itoa(d1))
	if digits[12:] != fmt.Sprintf("%d%d", d1, d2) {
		return CNPJ{}, shared.NewDomainError("INVALID_CNPJ", "CNPJ check digits do not match")
	}
	return CNPJ{value: digits}, nil
}

// MustCNPJ is NewCNPJ that panics on error; intended for constants and tests
func MustCNPJ(s string) CNPJ {
	c, err := NewCNPJ(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CNPJ) String() string { return c.value }

// IsZero reports whether the CNPJ is unset
func (c CNPJ) IsZero() bool { return c.value == "" }

// Root returns the 8-digit company root shared by all branches
func (c CNPJ) Root() string {
	if c.IsZero() {
		return ""
	}
	return c.value[:8]
}

// Formatted returns the CNPJ as 00.000.000/0000-00
func (c CNPJ) Formatted() string {
	if c.IsZero() {
		return ""
	}
	v := c.value
	return v[0:2] + "." + v[2:5] + "." + v[5:8] + "/" + v[8:12] + "-" + v[12:14]
}

func (c CNPJ) Equals(other CNPJ) bool { return c.value == other.value }
