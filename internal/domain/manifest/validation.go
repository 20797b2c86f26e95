package manifest

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

type validated struct {
	EmissionType    EmissionType
	StartUF         string
	EndUF           string
	RouteUFs        []string
	LoadingPlaces   []Place
	UnloadingPlaces []UnloadingPlace
	Vehicle         *VehicleRef
	Trailers        []VehicleRef
	Drivers         []DriverRef
	Clients         []ClientRef
	Insurance       *Insurance
	CIOT            string
	TollVouchers    []TollVoucher
	WeightUnit      WeightUnit
	AdditionalInfo  string
}

func validateContent(emitterType identity.EmitterType, c Content) (*validated, error) {
	v := &validated{EmissionType: c.EmissionType, WeightUnit: c.WeightUnit}
	if v.EmissionType == 0 {
		v.EmissionType = EmissionNormal
	}
	if !v.EmissionType.IsValid() {
		return nil, shared.NewDomainError("INVALID_EMISSION_TYPE", "Emission type must be 1 (normal) or 2 (contingency)")
	}
	if v.WeightUnit == "" {
		v.WeightUnit = WeightUnitKG
	}
	if !v.WeightUnit.IsValid() {
		return nil, shared.NewDomainError("INVALID_WEIGHT_UNIT", "Weight unit must be KG or TON")
	}
	if !c.StartUF.IsValid() || !c.EndUF.IsValid() {
		return nil, shared.NewDomainError("INVALID_UF", "Start and end UF are required")
	}
	v.StartUF, v.EndUF = c.StartUF.String(), c.EndUF.String()

	var err error
	if v.RouteUFs, err = validateRoute(c.StartUF, c.EndUF, c.RouteUFs); err != nil {
		return nil, err
	}
	if v.LoadingPlaces, err = validateLoading(c.StartUF, c.LoadingPlaces); err != nil {
		return nil, err
	}
	if v.UnloadingPlaces, err = validateUnloading(emitterType, c.EndUF, c.UnloadingPlaces); err != nil {
		return nil, err
	}
	if c.Vehicle != nil {
		ref := *c.Vehicle
		if ref.VehicleID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_VEHICLE", "Vehicle reference is required")
		}
		v.Vehicle = &ref
	}
	if v.Trailers, err = validateTrailers(c.Vehicle, c.Trailers); err != nil {
		return nil, err
	}
	if v.Drivers, err = validateDrivers(c.Drivers); err != nil {
		return nil, err
	}
	if v.Clients, err = validateClients(c.Clients); err != nil {
		return nil, err
	}
	if c.Insurance != nil {
		if v.Insurance, err = validateInsurance(*c.Insurance); err != nil {
			return nil, err
		}
	}
	if v.CIOT = valueobject.OnlyDigits(c.CIOT); v.CIOT != "" && len(v.CIOT) != 12 {
		return nil, shared.NewDomainError("INVALID_CIOT", "CIOT must have 12 digits")
	}
	if v.TollVouchers, err = validateTollVouchers(c.TollVouchers); err != nil {
		return nil, err
	}
	if c.CargoValue.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CARGO_VALUE", "Cargo value cannot be negative")
	}
	if c.GrossWeight.IsNegative() {
		return nil, shared.NewDomainError("INVALID_GROSS_WEIGHT", "Gross weight cannot be negative")
	}
	v.AdditionalInfo = valueobject.SanitizeText(c.AdditionalInfo)
	if len(v.AdditionalInfo) > MaxAdditionalInfo {
		return nil, shared.NewDomainError("INVALID_ADDITIONAL_INFO", "Additional information cannot exceed 5000 characters")
	}
	return v, nil
}

// validateRoute checks the percurso: UFs crossed between start and end,
// without repeating and without the start or end UF themselves.
func validateRoute(start, end valueobject.UF, route []valueobject.UF) ([]string, error) {
	if len(route) > MaxRouteUFs {
		return nil, shared.NewDomainError("INVALID_ROUTE", "Route cannot have more than 25 UFs")
	}
	seen := make(map[valueobject.UF]bool, len(route))
	out := make([]string, 0, len(route))
	for _, uf := range route {
		if !uf.IsValid() {
			return nil, shared.NewDomainError("INVALID_UF", "Invalid route UF: "+uf.String())
		}
		if uf == start || uf == end {
			return nil, shared.NewDomainError("INVALID_ROUTE", "Route must not include the start or end UF")
		}
		if seen[uf] {
			return nil, shared.NewDomainError("INVALID_ROUTE", "Route UF repeated: "+uf.String())
		}
		seen[uf] = true
		out = append(out, uf.String())
	}
	return out, nil
}

func validateLoading(start valueobject.UF, places []valueobject.Municipality) ([]Place, error) {
	if len(places) > MaxLoadingPlaces {
		return nil, shared.NewDomainError("INVALID_LOADING", "At most 50 loading municipalities are allowed")
	}
	seen := make(map[string]bool, len(places))
	out := make([]Place, 0, len(places))
	for _, p := range places {
		if p.IsZero() {
			return nil, shared.NewDomainError("INVALID_LOADING", "Loading municipality is required")
		}
		if p.UF() != start {
			return nil, shared.NewDomainError("INVALID_LOADING", "Loading municipality "+p.Name()+" is not in the start UF")
		}
		if seen[p.Code()] {
			return nil, shared.NewDomainError("INVALID_LOADING", "Loading municipality repeated: "+p.Name())
		}
		seen[p.Code()] = true
		out = append(out, PlaceOf(p))
	}
	return out, nil
}

// RequiredDocumentModel returns the document model an emitter type lists:
// CT-e for transport providers and NF-e for own cargo.
func RequiredDocumentModel(t identity.EmitterType) int {
	if t == identity.EmitterTransportProvider {
		return valueobject.ModelCTe
	}
	return valueobject.ModelNFe
}

func validateUnloading(emitterType identity.EmitterType, end valueobject.UF, places []Unloading) ([]UnloadingPlace, error) {
	model := RequiredDocumentModel(emitterType)
	seenPlace := make(map[string]bool, len(places))
	seenKey := make(map[string]bool)
	out := make([]UnloadingPlace, 0, len(places))
	for _, p := range places {
		m := p.Municipality
		if m.IsZero() {
			return nil, shared.NewDomainError("INVALID_UNLOADING", "Unloading municipality is required")
		}
		if m.UF() != end {
			return nil, shared.NewDomainError("INVALID_UNLOADING", "Unloading municipality "+m.Name()+" is not in the end UF")
		}
		if seenPlace[m.Code()] {
			return nil, shared.NewDomainError("INVALID_UNLOADING", "Unloading municipality repeated: "+m.Name())
		}
		seenPlace[m.Code()] = true

		up := UnloadingPlace{Place: PlaceOf(m), Documents: make([]FiscalDocument, 0, len(p.DocumentKeys))}
		for _, raw := range p.DocumentKeys {
			key, err := valueobject.ParseAccessKey(raw)
			if err != nil {
				return nil, err
			}
			if key.Model() != model {
				return nil, shared.NewDomainError("INVALID_DOCUMENT_MODEL",
					"Document "+key.String()+" must be model "+strconv.Itoa(model)+" for this emitter type")
			}
			if seenKey[key.String()] {
				return nil, shared.NewDomainError("DUPLICATE_DOCUMENT", "Document key repeated: "+key.String())
			}
			seenKey[key.String()] = true
			up.Documents = append(up.Documents, FiscalDocument{Model: key.Model(), Key: key.String()})
		}
		out = append(out, up)
	}
	return out, nil
}

func validateTrailers(traction *VehicleRef, trailers []VehicleRef) ([]VehicleRef, error) {
	if len(trailers) > MaxTrailers {
		return nil, shared.NewDomainError("TOO_MANY_TRAILERS", "A manifest can have at most 3 trailers")
	}
	seen := make(map[uuid.UUID]bool, len(trailers))
	if traction != nil {
		seen[traction.VehicleID] = true
	}
	out := make([]VehicleRef, 0, len(trailers))
	for _, t := range trailers {
		if t.VehicleID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_VEHICLE", "Trailer reference is required")
		}
		if seen[t.VehicleID] {
			return nil, shared.NewDomainError("DUPLICATE_VEHICLE", "Vehicle repeated on the manifest: "+t.Plate)
		}
		seen[t.VehicleID] = true
		out = append(out, t)
	}
	return out, nil
}

func validateDrivers(drivers []DriverRef) ([]DriverRef, error) {
	if len(drivers) > MaxDrivers {
		return nil, shared.NewDomainError("TOO_MANY_DRIVERS", "A manifest can have at most 10 drivers")
	}
	seen := make(map[string]bool, len(drivers))
	out := make([]DriverRef, 0, len(drivers))
	for _, d := range drivers {
		d, err := normalizeDriver(d)
		if err != nil {
			return nil, err
		}
		if seen[d.CPF] {
			return nil, shared.NewDomainError("DUPLICATE_DRIVER", "Driver repeated on the manifest: "+d.Name)
		}
		seen[d.CPF] = true
		out = append(out, d)
	}
	return out, nil
}

func normalizeDriver(d DriverRef) (DriverRef, error) {
	cpf, err := valueobject.NewCPF(d.CPF)
	if err != nil {
		return DriverRef{}, err
	}
	d.CPF = cpf.String()
	d.Name = valueobject.SanitizeText(d.Name)
	if len(d.Name) < 2 || len(d.Name) > 60 {
		return DriverRef{}, shared.NewDomainError("INVALID_DRIVER", "Driver name must have between 2 and 60 characters")
	}
	return d, nil
}

func validateClients(clients []ClientRef) ([]ClientRef, error) {
	seen := make(map[string]bool, len(clients))
	out := make([]ClientRef, 0, len(clients))
	for _, c := range clients {
		doc, err := valueobject.NewTaxDocument(c.Document)
		if err != nil {
			return nil, err
		}
		if seen[doc.String()] {
			return nil, shared.NewDomainError("DUPLICATE_CLIENT", "Contracting party repeated: "+doc.Formatted())
		}
		seen[doc.String()] = true
		c.Document = doc.String()
		c.Name = valueobject.SanitizeText(c.Name)
		out = append(out, c)
	}
	return out, nil
}

func validateInsurance(in Insurance) (*Insurance, error) {
	if in.Responsible != InsuranceByEmitter && in.Responsible != InsuranceByContract {
		return nil, shared.NewDomainError("INVALID_INSURANCE", "Insurance responsible must be 1 (emitter) or 2 (contracting party)")
	}
	if in.Responsible == InsuranceByContract {
		doc, err := valueobject.NewTaxDocument(in.ResponsibleDocument)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_INSURANCE", "Contracting party document is required when it is responsible for insurance")
		}
		in.ResponsibleDocument = doc.String()
	} else {
		in.ResponsibleDocument = ""
	}
	if in.InsurerCNPJ != "" {
		cnpj, err := valueobject.NewCNPJ(in.InsurerCNPJ)
		if err != nil {
			return nil, err
		}
		in.InsurerCNPJ = cnpj.String()
	}
	in.InsurerName = valueobject.SanitizeText(in.InsurerName)
	in.PolicyNumber = valueobject.SanitizeUpper(in.PolicyNumber)
	if len(in.PolicyNumber) > 20 {
		return nil, shared.NewDomainError("INVALID_INSURANCE", "Policy number cannot exceed 20 characters")
	}
	if len(in.Endorsements) > MaxEndorsements {
		return nil, shared.NewDomainError("INVALID_INSURANCE", "At most 20 endorsement numbers are allowed")
	}
	seen := make(map[string]bool, len(in.Endorsements))
	endorsements := make([]string, 0, len(in.Endorsements))
	for _, e := range in.Endorsements {
		e = valueobject.OnlyDigits(e)
		if e == "" || len(e) > 40 {
			return nil, shared.NewDomainError("INVALID_INSURANCE", "Endorsement numbers must have 1 to 40 digits")
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		endorsements = append(endorsements, e)
	}
	in.Endorsements = endorsements
	return &in, nil
}

func validateTollVouchers(vouchers []TollVoucher) ([]TollVoucher, error) {
	out := make([]TollVoucher, 0, len(vouchers))
	for _, tv := range vouchers {
		cnpj, err := valueobject.NewCNPJ(tv.SupplierCNPJ)
		if err != nil {
			return nil, err
		}
		tv.SupplierCNPJ = cnpj.String()
		tv.VoucherNumber = valueobject.SanitizeUpper(tv.VoucherNumber)
		if tv.VoucherNumber == "" || len(tv.VoucherNumber) > 20 {
			return nil, shared.NewDomainError("INVALID_TOLL_VOUCHER", "Voucher number is required and cannot exceed 20 characters")
		}
		if tv.Value.IsNegative() {
			return nil, shared.NewDomainError("INVALID_TOLL_VOUCHER", "Voucher value cannot be negative")
		}
		tv.Value = tv.Value.Round(2)
		out = append(out, tv)
	}
	return out, nil
}
