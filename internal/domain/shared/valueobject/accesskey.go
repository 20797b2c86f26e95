package valueobject

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mdfe/backend/internal/domain/shared"
)

// Fiscal document models that appear in access keys
const (
	ModelNFe  = 55
	ModelCTe  = 57
	ModelMDFe = 58
)

// AccessKeyLength is the number of digits in a chave de acesso
const AccessKeyLength = 44

// AccessKeyParts are the fields encoded in an access key
type AccessKeyParts struct {
	UF           UF
	IssuedAt     time.Time
	IssuerCNPJ   string
	Model        int
	Series       int
	Number       int
	EmissionType int
	Code         int
}

// AccessKey is a 44-digit fiscal access key:
// cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) number(9) tpEmis(1) code(8) DV(1)
type AccessKey struct {
	value string
}

// NewAccessKey assembles a key from its parts and appends the check digit
func NewAccessKey(p AccessKeyParts) (AccessKey, error) {
	if !p.UF.IsValid() {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Access key requires a valid UF")
	}
	cnpj := OnlyDigits(p.IssuerCNPJ)
	if len(cnpj) != 14 {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Issuer document must have 14 digits")
	}
	if p.Model < 1 || p.Model > 99 {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Invalid document model")
	}
	if p.Series < 0 || p.Series > 999 {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Series must be between 0 and 999")
	}
	if p.Number < 1 || p.Number > 999999999 {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Number must be between 1 and 999999999")
	}
	if p.EmissionType < 1 || p.EmissionType > 9 {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Invalid emission type")
	}
	if p.Code < 0 || p.Code > 99999999 {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Numeric code must have at most 8 digits")
	}
	if p.IssuedAt.IsZero() {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Issue date is required")
	}

	base := fmt.Sprintf("%02d%s%s%02d%03d%09d%d%08d",
		p.UF.Code(), p.IssuedAt.Format("0601"), cnpj, p.Model, p.Series, p.Number, p.EmissionType, p.Code)
	return AccessKey{value: base + strconv.Itoa(mod11(base))}, nil
}

// ParseAccessKey validates a 44-digit key (spaces allowed) including the
// check digit and the state code.
func ParseAccessKey(s string) (AccessKey, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if len(v) != AccessKeyLength || !isDigits(v) {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Access key must have 44 digits")
	}
	if strconv.Itoa(mod11(v[:43])) != v[43:] {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Access key check digit does not match")
	}
	code, _ := strconv.Atoi(v[:2])
	if _, err := UFFromCode(code); err != nil {
		return AccessKey{}, shared.NewDomainError("INVALID_ACCESS_KEY", "Access key has an unknown state code")
	}
	return AccessKey{value: v}, nil
}

func (k AccessKey) String() string { return k.value }
func (k AccessKey) IsZero() bool   { return k.value == "" }

func (k AccessKey) UF() UF {
	code, _ := strconv.Atoi(k.value[:2])
	uf, _ := UFFromCode(code)
	return uf
}

// YearMonth returns the AAMM segment
func (k AccessKey) YearMonth() string { return k.value[2:6] }
func (k AccessKey) IssuerCNPJ() string { return k.value[6:20] }
func (k AccessKey) Model() int         { return k.atoi(20, 22) }
func (k AccessKey) Series() int        { return k.atoi(22, 25) }
func (k AccessKey) Number() int        { return k.atoi(25, 34) }
func (k AccessKey) EmissionType() int  { return k.atoi(34, 35) }
func (k AccessKey) Code() int          { return k.atoi(35, 43) }
func (k AccessKey) CheckDigit() int    { return k.atoi(43, 44) }

func (k AccessKey) atoi(from, to int) int {
	n, _ := strconv.Atoi(k.value[from:to])
	return n
}

// Formatted groups the key in blocks of four digits, as printed on DAMDFE
func (k AccessKey) Formatted() string {
	var b strings.Builder
	for i := 0; i < len(k.value); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := i + 4
		if end > len(k.value) {
			end = len(k.value)
		}
		b.WriteString(k.value[i:end])
	}
	return b.String()
}
