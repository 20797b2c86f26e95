package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDriverService() (*DriverService, *MockDriverRepository, *MockTripRepository) {
	drivers := new(MockDriverRepository)
	trips := new(MockTripRepository)
	svc := NewDriverService(drivers, trips, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc, drivers, trips
}

func TestDriverService_Create(t *testing.T) {
	svc, drivers, _ := newDriverService()
	tenantID := uuid.New()
	drivers.On("ExistsByCPF", mock.Anything, tenantID, "52998224725").Return(false, nil)
	drivers.On("Save", mock.Anything, mock.AnythingOfType("*fleet.Driver")).Return(nil)

	resp, err := svc.Create(context.Background(), tenantID, CreateDriverRequest{
		Name:         "  João   da Silva ",
		CPF:          "529.982.247-25",
		CNHNumber:    "123.456.789-01",
		CNHCategory:  "e",
		CNHExpiresAt: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Phone:        "(41) 99999-0000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Joao da Silva", resp.Name)
	assert.Equal(t, "12345678901", resp.CNHNumber)
	assert.Equal(t, "E", resp.CNHCategory)
	assert.Equal(t, "41999990000", resp.Phone)
	assert.True(t, resp.CNHValid)
}

func TestDriverService_Create_DuplicateCPF(t *testing.T) {
	svc, drivers, _ := newDriverService()
	tenantID := uuid.New()
	drivers.On("ExistsByCPF", mock.Anything, tenantID, "52998224725").Return(true, nil)

	_, err := svc.Create(context.Background(), tenantID, CreateDriverRequest{
		Name: "Joao", CPF: "52998224725", CNHNumber: "12345678901", CNHCategory: "E",
		CNHExpiresAt: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, "CPF_EXISTS", errorCode(t, err))
}

func TestDriverService_GetByID_ExpiredCNH(t *testing.T) {
	svc, drivers, _ := newDriverService()
	tenantID := uuid.New()
	driver := newDriver(t, tenantID, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	drivers.On("FindByID", mock.Anything, tenantID, driver.ID).Return(driver, nil)

	resp, err := svc.GetByID(context.Background(), tenantID, driver.ID)
	require.NoError(t, err)
	assert.False(t, resp.CNHValid)
}

func TestDriverService_Delete(t *testing.T) {
	tenantID := uuid.New()

	t.Run("on open trip", func(t *testing.T) {
		svc, drivers, trips := newDriverService()
		driver := newDriver(t, tenantID, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
		drivers.On("FindByID", mock.Anything, tenantID, driver.ID).Return(driver, nil)
		trips.On("CountOpenByDriver", mock.Anything, tenantID, driver.ID).Return(int64(1), nil)

		err := svc.Delete(context.Background(), tenantID, driver.ID)
		assert.Equal(t, "DRIVER_IN_USE", errorCode(t, err))
		drivers.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("free driver", func(t *testing.T) {
		svc, drivers, trips := newDriverService()
		driver := newDriver(t, tenantID, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
		drivers.On("FindByID", mock.Anything, tenantID, driver.ID).Return(driver, nil)
		trips.On("CountOpenByDriver", mock.Anything, tenantID, driver.ID).Return(int64(0), nil)
		drivers.On("Delete", mock.Anything, tenantID, driver.ID).Return(nil)

		require.NoError(t, svc.Delete(context.Background(), tenantID, driver.ID))
	})
}

func TestDriverService_ActivateDeactivate(t *testing.T) {
	svc, drivers, _ := newDriverService()
	tenantID := uuid.New()
	driver := newDriver(t, tenantID, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	drivers.On("FindByID", mock.Anything, tenantID, driver.ID).Return(driver, nil)
	drivers.On("Save", mock.Anything, driver).Return(nil)

	resp, err := svc.Deactivate(context.Background(), tenantID, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, "inactive", resp.Status)

	resp, err = svc.Activate(context.Background(), tenantID, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Status)

	_, err = svc.Activate(context.Background(), tenantID, driver.ID)
	assert.Equal(t, "ALREADY_ACTIVE", errorCode(t, err))
}
