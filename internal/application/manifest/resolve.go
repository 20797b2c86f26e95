package manifest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/fleet"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// resolveContent turns a request into manifest content, copying the
// registered vehicles, drivers, clients and insurer onto it
func (s *ManifestService) resolveContent(ctx context.Context, tenantID uuid.UUID, req ContentRequest) (manifest.Content, error) {
	c := manifest.Content{
		EmissionType:   manifest.EmissionType(req.EmissionType),
		DepartureAt:    req.DepartureAt,
		CargoValue:     req.CargoValue,
		GrossWeight:    req.GrossWeight,
		WeightUnit:     manifest.WeightUnit(req.WeightUnit),
		CIOT:           req.CIOT,
		AdditionalInfo: req.AdditionalInfo,
	}
	if c.EmissionType == 0 {
		c.EmissionType = manifest.EmissionNormal
	}
	if c.WeightUnit == "" {
		c.WeightUnit = manifest.WeightUnitKG
	}

	var err error
	if c.StartUF, err = valueobject.ParseUF(req.StartUF); err != nil {
		return c, err
	}
	if c.EndUF, err = valueobject.ParseUF(req.EndUF); err != nil {
		return c, err
	}
	for _, raw := range req.RouteUFs {
		uf, err := valueobject.ParseUF(raw)
		if err != nil {
			return c, err
		}
		c.RouteUFs = append(c.RouteUFs, uf)
	}
	for _, in := range req.LoadingPlaces {
		m, err := in.ToMunicipality()
		if err != nil {
			return c, err
		}
		c.LoadingPlaces = append(c.LoadingPlaces, m)
	}
	for _, in := range req.UnloadingPlaces {
		m, err := in.Municipality.ToMunicipality()
		if err != nil {
			return c, err
		}
		c.UnloadingPlaces = append(c.UnloadingPlaces, manifest.Unloading{Municipality: m, DocumentKeys: in.DocumentKeys})
	}
	for _, tv := range req.TollVouchers {
		c.TollVouchers = append(c.TollVouchers, manifest.TollVoucher{
			SupplierCNPJ:  tv.SupplierCNPJ,
			VoucherNumber: tv.VoucherNumber,
			Value:         tv.Value,
		})
	}

	if req.VehicleID != nil {
		v, err := s.vehicleRepo.FindByID(ctx, tenantID, *req.VehicleID)
		if err != nil {
			return c, vehicleNotFound(err)
		}
		if !v.IsTraction() {
			return c, shared.NewDomainError("NOT_A_TRACTION_UNIT", "Vehicle "+v.Plate+" is not a traction unit")
		}
		ref := vehicleRef(v)
		c.Vehicle = &ref
	}
	if c.Trailers, err = s.resolveTrailers(ctx, tenantID, req.TrailerIDs); err != nil {
		return c, err
	}
	if c.Drivers, err = s.resolveDrivers(ctx, tenantID, req.DriverIDs); err != nil {
		return c, err
	}
	if c.Clients, err = s.resolveClients(ctx, tenantID, req.ClientIDs); err != nil {
		return c, err
	}
	if req.Insurance != nil {
		if c.Insurance, err = s.resolveInsurance(ctx, tenantID, *req.Insurance); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (s *ManifestService) resolveTrailers(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]manifest.VehicleRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > manifest.MaxTrailers {
		return nil, shared.NewDomainError("TOO_MANY_TRAILERS", "A manifest can have at most 3 trailers")
	}
	found, err := s.vehicleRepo.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*fleet.Vehicle, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	refs := make([]manifest.VehicleRef, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, shared.NewDomainError("VEHICLE_NOT_FOUND", "Trailer not found: "+id.String())
		}
		if !v.IsTrailer() {
			return nil, shared.NewDomainError("NOT_A_TRAILER", "Vehicle "+v.Plate+" is not a trailer")
		}
		refs = append(refs, vehicleRef(v))
	}
	return refs, nil
}

func (s *ManifestService) resolveDrivers(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]manifest.DriverRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > manifest.MaxDrivers {
		return nil, shared.NewDomainError("TOO_MANY_DRIVERS", "A manifest can have at most 10 drivers")
	}
	found, err := s.driverRepo.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*fleet.Driver, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	refs := make([]manifest.DriverRef, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, shared.NewDomainError("DRIVER_NOT_FOUND", "Driver not found: "+id.String())
		}
		refs = append(refs, driverRef(d))
	}
	return refs, nil
}

func (s *ManifestService) resolveClients(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]manifest.ClientRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.clientRepo.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]manifest.ClientRef, len(found))
	for _, c := range found {
		byID[c.ID] = manifest.ClientRef{ClientID: c.ID, Name: c.Name, Document: c.Document}
	}
	refs := make([]manifest.ClientRef, 0, len(ids))
	for _, id := range ids {
		ref, ok := byID[id]
		if !ok {
			return nil, shared.NewDomainError("CLIENT_NOT_FOUND", "Client not found: "+id.String())
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *ManifestService) resolveInsurance(ctx context.Context, tenantID uuid.UUID, in InsuranceInput) (*manifest.Insurance, error) {
	ins := &manifest.Insurance{
		Responsible:         manifest.InsuranceResponsible(in.Responsible),
		ResponsibleDocument: in.ResponsibleDocument,
		InsurerName:         in.InsurerName,
		InsurerCNPJ:         in.InsurerCNPJ,
		PolicyNumber:        in.PolicyNumber,
		Endorsements:        in.Endorsements,
	}
	if in.InsurerID == nil {
		return ins, nil
	}
	insurer, err := s.insurerRepo.FindByID(ctx, tenantID, *in.InsurerID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("INSURER_NOT_FOUND", "Insurer not found")
		}
		return nil, err
	}
	id := insurer.ID
	ins.InsurerID = &id
	ins.InsurerName = insurer.Name
	ins.InsurerCNPJ = insurer.CNPJ
	if ins.PolicyNumber == "" {
		ins.PolicyNumber = insurer.PolicyNumber
	}
	return ins, nil
}

// checkParticipants re-reads the vehicles, drivers and insurer at
// transmission time: the manifest only holds snapshots
func (s *ManifestService) checkParticipants(ctx context.Context, m *manifest.Manifest, at time.Time) error {
	tractor, err := s.vehicleRepo.FindByID(ctx, m.TenantID, m.Vehicle.VehicleID)
	if err != nil {
		return vehicleNotFound(err)
	}
	if !tractor.IsTraction() {
		return shared.NewDomainError("NOT_A_TRACTION_UNIT", "Vehicle "+tractor.Plate+" is not a traction unit")
	}
	if !tractor.IsActive() {
		return shared.NewDomainError("VEHICLE_UNAVAILABLE", "Vehicle "+tractor.Plate+" is not active")
	}

	if len(m.Trailers) > 0 {
		ids := make([]uuid.UUID, 0, len(m.Trailers))
		for _, t := range m.Trailers {
			ids = append(ids, t.VehicleID)
		}
		trailers, err := s.vehicleRepo.FindByIDs(ctx, m.TenantID, ids)
		if err != nil {
			return err
		}
		if len(trailers) != len(ids) {
			return shared.NewDomainError("VEHICLE_NOT_FOUND", "A trailer on the manifest no longer exists")
		}
		for i := range trailers {
			if !trailers[i].IsTrailer() {
				return shared.NewDomainError("NOT_A_TRAILER", "Vehicle "+trailers[i].Plate+" is not a trailer")
			}
			if !trailers[i].IsActive() {
				return shared.NewDomainError("VEHICLE_UNAVAILABLE", "Trailer "+trailers[i].Plate+" is not active")
			}
		}
	}

	ids := make([]uuid.UUID, 0, len(m.Drivers))
	for _, d := range m.Drivers {
		ids = append(ids, d.DriverID)
	}
	drivers, err := s.driverRepo.FindByIDs(ctx, m.TenantID, ids)
	if err != nil {
		return err
	}
	if len(drivers) != len(ids) {
		return shared.NewDomainError("DRIVER_NOT_FOUND", "A driver on the manifest no longer exists")
	}
	for i := range drivers {
		if err := drivers[i].CanDrive(at); err != nil {
			return err
		}
	}

	if m.Insurance != nil && m.Insurance.InsurerID != nil {
		insurer, err := s.insurerRepo.FindByID(ctx, m.TenantID, *m.Insurance.InsurerID)
		if err != nil {
			if shared.IsNotFound(err) {
				return shared.NewDomainError("INSURER_NOT_FOUND", "Insurer on the manifest no longer exists")
			}
			return err
		}
		if insurer.PolicyNumber != "" && !insurer.PolicyValidAt(at) {
			return shared.NewDomainError("INSURANCE_POLICY_EXPIRED", "Insurance policy of "+insurer.Name+" is not valid")
		}
	}
	return nil
}

func vehicleRef(v *fleet.Vehicle) manifest.VehicleRef {
	return manifest.VehicleRef{
		VehicleID:   v.ID,
		Plate:       v.Plate,
		Renavam:     v.Renavam,
		TareKg:      v.TareKg,
		CapacityKg:  v.CapacityKg,
		CapacityM3:  v.CapacityM3,
		WheelType:   v.WheelType,
		BodyType:    v.BodyType,
		LicensingUF: v.LicensingUF,
	}
}

func driverRef(d *fleet.Driver) manifest.DriverRef {
	return manifest.DriverRef{DriverID: d.ID, Name: d.Name, CPF: d.CPF}
}

func vehicleNotFound(err error) error {
	if shared.IsNotFound(err) {
		return shared.NewDomainError("VEHICLE_NOT_FOUND", "Vehicle not found")
	}
	return err
}
