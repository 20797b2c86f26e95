package valueobject

import (
	"regexp"
	"strings"

	"github.com/mdfe/backend/internal/domain/shared"
)

// Old format AAA9999 and Mercosul AAA9A99 both match
var platePattern = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)

// Plate is a vehicle license plate
type Plate struct {
	value string
}

// NewPlate normalizes (upper-case, no hyphen or spaces) and validates a plate
func NewPlate(s string) (Plate, error) {
	v := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(s))
	if !platePattern.MatchString(v) {
		return Plate{}, shared.NewDomainError("INVALID_PLATE", "Invalid license plate: "+s)
	}
	return Plate{value: v}, nil
}

func (p Plate) String() string { return p.value }

// IsMercosul reports whether the plate uses the Mercosul layout
func (p Plate) IsMercosul() bool {
	return len(p.value) == 7 && p.value[4] >= 'A' && p.value[4] <= 'Z'
}
