package fleet

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tractionSpec() VehicleSpec {
	return VehicleSpec{
		Plate:       "bra-2e19",
		Renavam:     "12345678901",
		TareKg:      8500,
		CapacityKg:  30000,
		CapacityM3:  90,
		WheelType:   "03",
		BodyType:    "00",
		LicensingUF: "sp",
	}
}

func TestNewVehicle(t *testing.T) {
	v, err := NewVehicle(uuid.New(), VehicleKindTraction, tractionSpec())
	require.NoError(t, err)
	assert.Equal(t, "BRA2E19", v.Plate)
	assert.Equal(t, "SP", v.LicensingUF)
	assert.Equal(t, OwnershipOwn, v.Ownership)
	assert.True(t, v.IsActive())
	assert.True(t, v.IsTraction())
	assert.Equal(t, "Cavalo Mecanico", v.WheelTypeName())
	require.Len(t, v.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeVehicleRegistered, v.GetDomainEvents()[0].EventType())

	trailerSpec := tractionSpec()
	trailerSpec.Plate = "ABC1234"
	trailerSpec.BodyType = "02"
	trailer, err := NewVehicle(uuid.New(), VehicleKindTrailer, trailerSpec)
	require.NoError(t, err)
	assert.Empty(t, trailer.WheelType, "trailers carry no wheel type")
	assert.Equal(t, "Fechada/Bau", trailer.BodyTypeName())
}

func TestNewVehicle_Validation(t *testing.T) {
	tests := []struct {
		name   string
		kind   VehicleKind
		mutate func(s *VehicleSpec)
	}{
		{"bad kind", "bicycle", func(s *VehicleSpec) {}},
		{"bad plate", VehicleKindTraction, func(s *VehicleSpec) { s.Plate = "12345" }},
		{"bad renavam", VehicleKindTraction, func(s *VehicleSpec) { s.Renavam = "123" }},
		{"zero tare", VehicleKindTraction, func(s *VehicleSpec) { s.TareKg = 0 }},
		{"bad body type", VehicleKindTraction, func(s *VehicleSpec) { s.BodyType = "09" }},
		{"bad wheel type", VehicleKindTraction, func(s *VehicleSpec) { s.WheelType = "07" }},
		{"bad uf", VehicleKindTraction, func(s *VehicleSpec) { s.LicensingUF = "XX" }},
		{"negative capacity", VehicleKindTraction, func(s *VehicleSpec) { s.CapacityKg = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := tractionSpec()
			tt.mutate(&spec)
			_, err := NewVehicle(uuid.New(), tt.kind, spec)
			assert.Error(t, err)
		})
	}
}

func TestVehicle_OwnershipAndStatus(t *testing.T) {
	v, err := NewVehicle(uuid.New(), VehicleKindTraction, tractionSpec())
	require.NoError(t, err)

	require.NoError(t, v.SetThirdPartyOwner("529.982.247-25", "Joao Transportes", "87654321", "ISENTO", "MG", OwnerTypeTACIndependent))
	assert.Equal(t, OwnershipThirdParty, v.Ownership)
	assert.Equal(t, "52998224725", v.OwnerDocument)
	assert.Error(t, v.SetThirdPartyOwner("529.982.247-25", "Joao", "123", "", "MG", 1))
	assert.Error(t, v.SetThirdPartyOwner("529.982.247-25", "Joao", "87654321", "", "MG", 5))

	v.SetOwnOwnership()
	assert.Equal(t, OwnershipOwn, v.Ownership)
	assert.Empty(t, v.OwnerDocument)

	require.NoError(t, v.EnterMaintenance())
	assert.Equal(t, VehicleStatusMaintenance, v.Status)
	assert.Error(t, v.Activate())
	v.LeaveMaintenance()
	assert.True(t, v.IsActive())

	require.NoError(t, v.Deactivate())
	assert.Error(t, v.EnterMaintenance())
	require.NoError(t, v.Activate())
}

func TestDriver(t *testing.T) {
	expires := time.Now().AddDate(1, 0, 0)
	d, err := NewDriver(uuid.New(), " José  da Silva ", "529.982.247-25", "123.456.789-01", "e", expires)
	require.NoError(t, err)
	assert.Equal(t, "Jose da Silva", d.Name)
	assert.Equal(t, "E", d.CNHCategory)
	assert.NoError(t, d.CanDrive(time.Now()))
	assert.Error(t, d.CanDrive(expires.AddDate(0, 0, 1)))

	require.NoError(t, d.Deactivate())
	assert.Error(t, d.CanDrive(time.Now()))
	assert.Error(t, d.Deactivate())

	_, err = NewDriver(uuid.New(), "Jose", "111.111.111-11", "12345678901", "E", expires)
	assert.Error(t, err)
	_, err = NewDriver(uuid.New(), "Jose", "529.982.247-25", "123", "E", expires)
	assert.Error(t, err)
	_, err = NewDriver(uuid.New(), "Jose", "529.982.247-25", "12345678901", "Z", expires)
	assert.Error(t, err)
	_, err = NewDriver(uuid.New(), "Jose", "529.982.247-25", "12345678901", "E", time.Time{})
	assert.Error(t, err)
}

func TestMaintenanceOrder(t *testing.T) {
	o, err := NewMaintenanceOrder(uuid.New(), uuid.New(), MaintenanceKindCorrective, "Troca de embreagem", nil)
	require.NoError(t, err)
	assert.True(t, o.IsOpen())

	supplierID := uuid.New()
	require.NoError(t, o.SetSupplier(&supplierID))
	require.NoError(t, o.Start())
	assert.Error(t, o.Start())
	assert.Error(t, o.Complete(decimal.NewFromInt(-1), 1000))

	require.NoError(t, o.Complete(decimal.RequireFromString("1500.456"), 120000))
	assert.Equal(t, "1500.46", o.Cost.StringFixed(2))
	assert.False(t, o.IsOpen())
	assert.Error(t, o.Cancel("late"))

	o2, err := NewMaintenanceOrder(uuid.New(), uuid.New(), MaintenanceKindPreventive, "Revisao 50 mil km", nil)
	require.NoError(t, err)
	assert.Error(t, o2.Cancel(" "))
	require.NoError(t, o2.Cancel("Veiculo vendido"))
	assert.Equal(t, MaintenanceStatusCancelled, o2.Status)

	_, err = NewMaintenanceOrder(uuid.New(), uuid.Nil, MaintenanceKindPreventive, "x", nil)
	assert.Error(t, err)
	_, err = NewMaintenanceOrder(uuid.New(), uuid.New(), "other", "x", nil)
	assert.Error(t, err)
}

func municipality(t *testing.T, code, name string, uf valueobject.UF) valueobject.Municipality {
	t.Helper()
	m, err := valueobject.NewMunicipality(code, name, uf)
	require.NoError(t, err)
	return m
}

func TestTrip(t *testing.T) {
	origin := municipality(t, "3550308", "Sao Paulo", "SP")
	dest := municipality(t, "3106200", "Belo Horizonte", "MG")
	driver := uuid.New()

	trip, err := NewTrip(uuid.New(), uuid.New(), nil, []uuid.UUID{driver}, origin, dest, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "MG", trip.DestinationUF)
	assert.True(t, trip.IsOpen())

	require.NoError(t, trip.Start(1000))
	assert.Error(t, trip.Finish(999))
	require.NoError(t, trip.Finish(1586))
	assert.Equal(t, 586, trip.Distance())
	assert.False(t, trip.IsOpen())
	assert.Error(t, trip.Cancel())

	manifestID := uuid.New()
	require.NoError(t, trip.LinkManifest(manifestID))
	assert.Equal(t, manifestID, *trip.ManifestID)

	_, err = NewTrip(uuid.New(), uuid.New(), nil, nil, origin, dest, time.Now())
	assert.Error(t, err)
	_, err = NewTrip(uuid.New(), uuid.New(), []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}, []uuid.UUID{driver}, origin, dest, time.Now())
	assert.Error(t, err)
	_, err = NewTrip(uuid.New(), uuid.New(), nil, []uuid.UUID{driver, driver}, origin, dest, time.Now())
	assert.Error(t, err)

	cancelled, err := NewTrip(uuid.New(), uuid.New(), nil, []uuid.UUID{driver}, origin, dest, time.Now())
	require.NoError(t, err)
	require.NoError(t, cancelled.Cancel())
	assert.Error(t, cancelled.LinkManifest(manifestID))
	assert.Equal(t, 0, cancelled.Distance())
}
