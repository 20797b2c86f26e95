package valueobject

import (
	"fmt"

	"github.com/mdfe/backend/internal/domain/shared"
)

// CPF is a validated Brazilian individual taxpayer number (11 digits)
type CPF struct {
	value string
}

// NewCPF parses a CPF with or without punctuation and validates its check digits
func NewCPF(s string) (CPF, error) {
	digits := OnlyDigits(s)
	if len(digits) != 11 {
		return CPF{}, shared.NewDomainError("INVALID_CPF", "CPF must have 11 digits")
	}
	if allSameDigit(digits) {
		return CPF{}, shared.NewDomainError("INVALID_CPF", "CPF cannot have all digits equal")
	}
	d1 := cpfDigit(digits[:9])
	d2 := cpfDigit(digits[:10])
	if digits[9:] != fmt.Sprintf("%d%d", d1, d2) {
		return CPF{}, shared.NewDomainError("INVALID_CPF", "CPF check digits do not match")
	}
	return CPF{value: digits}, nil
}

// cpfDigit uses weights growing from 2 at the rightmost digit without cycling
func cpfDigit(digits string) int {
	sum := 0
	weight := len(digits) + 1
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * weight
		weight--
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func (c CPF) String() string { return c.value }

func (c CPF) IsZero() bool { return c.value == "" }

// Formatted returns the CPF as 000.000.000-00
func (c CPF) Formatted() string {
	if c.IsZero() {
		return ""
	}
	v := c.value
	return v[0:3] + "." + v[3:6] + "." + v[6:9] + "-" + v[9:11]
}
