package manifest

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

var numericCodeLimit = big.NewInt(100000000)

// NewNumericCode returns the 8 random digits of cMDF. SEFAZ rejects a code
// equal to the manifest number, so such values are drawn again.
func NewNumericCode(number int) (string, error) {
	for {
		n, err := rand.Int(rand.Reader, numericCodeLimit)
		if err != nil {
			return "", fmt.Errorf("generate numeric code: %w", err)
		}
		if n.Int64() != int64(number) {
			return fmt.Sprintf("%08d", n.Int64()), nil
		}
	}
}

func parseNumericCode(s string) (int, error) {
	if len(s) != 8 || valueobject.OnlyDigits(s) != s {
		return 0, shared.NewDomainError("INVALID_NUMERIC_CODE", "Numeric code must have 8 digits")
	}
	return strconv.Atoi(s)
}
