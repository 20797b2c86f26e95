package valueobject

import "github.com/mdfe/backend/internal/domain/shared"

// DocumentKind tells whether a TaxDocument is a company or a person
type DocumentKind string

const (
	DocumentKindCNPJ DocumentKind = "cnpj"
	DocumentKindCPF  DocumentKind = "cpf"
)

// TaxDocument is either a CNPJ or a CPF, picked by digit count
type TaxDocument struct {
	kind   DocumentKind
	number string
}

// NewTaxDocument validates s as CNPJ (14 digits) or CPF (11 digits)
func NewTaxDocument(s string) (TaxDocument, error) {
	digits := OnlyDigits(s)
	switch len(digits) {
	case 14:
		c, err := NewCNPJ(digits)
		if err != nil {
			return TaxDocument{}, err
		}
		return TaxDocument{kind: DocumentKindCNPJ, number: c.String()}, nil
	case 11:
		c, err := NewCPF(digits)
		if err != nil {
			return TaxDocument{}, err
		}
		return TaxDocument{kind: DocumentKindCPF, number: c.String()}, nil
	default:
		return TaxDocument{}, shared.NewDomainError("INVALID_TAX_DOCUMENT", "Document must be a CNPJ (14 digits) or CPF (11 digits)")
	}
}

func (d TaxDocument) Kind() DocumentKind { return d.kind }
func (d TaxDocument) String() string     { return d.number }
func (d TaxDocument) IsCNPJ() bool       { return d.kind == DocumentKindCNPJ }
func (d TaxDocument) IsCPF() bool        { return d.kind == DocumentKindCPF }
func (d TaxDocument) IsZero() bool       { return d.number == "" }

// Formatted returns the document with its usual punctuation
func (d TaxDocument) Formatted() string {
	switch d.kind {
	case DocumentKindCNPJ:
		return CNPJ{value: d.number}.Formatted()
	case DocumentKindCPF:
		return CPF{value: d.number}.Formatted()
	}
	return ""
}
