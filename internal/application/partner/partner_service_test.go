package partner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/domain/partner"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Client, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Client), args.Error(1)
}

func (m *MockClientRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]partner.Client, error) {
	args := m.Called(ctx, tenantID, ids)
	return args.Get(0).([]partner.Client), args.Error(1)
}

func (m *MockClientRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Client, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]partner.Client), args.Get(1).(int64), args.Error(2)
}

func (m *MockClientRepository) ExistsByDocument(ctx context.Context, tenantID uuid.UUID, document string) (bool, error) {
	args := m.Called(ctx, tenantID, document)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRepository) Save(ctx context.Context, client *partner.Client) error {
	return m.Called(ctx, client).Error(0)
}

func (m *MockClientRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type MockInsurerRepository struct {
	mock.Mock
}

func (m *MockInsurerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Insurer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Insurer), args.Error(1)
}

func (m *MockInsurerRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Insurer, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]partner.Insurer), args.Get(1).(int64), args.Error(2)
}

func (m *MockInsurerRepository) ExistsByCNPJ(ctx context.Context, tenantID uuid.UUID, cnpj string) (bool, error) {
	args := m.Called(ctx, tenantID, cnpj)
	return args.Bool(0), args.Error(1)
}

func (m *MockInsurerRepository) Save(ctx context.Context, insurer *partner.Insurer) error {
	return m.Called(ctx, insurer).Error(0)
}

func (m *MockInsurerRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

type MockSupplierRepository struct {
	mock.Mock
}

func (m *MockSupplierRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Supplier, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Supplier), args.Error(1)
}

func (m *MockSupplierRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter partner.ListFilter) ([]partner.Supplier, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]partner.Supplier), args.Get(1).(int64), args.Error(2)
}

func (m *MockSupplierRepository) ExistsByDocument(ctx context.Context, tenantID uuid.UUID, document string) (bool, error) {
	args := m.Called(ctx, tenantID, document)
	return args.Bool(0), args.Error(1)
}

func (m *MockSupplierRepository) Save(ctx context.Context, supplier *partner.Supplier) error {
	return m.Called(ctx, supplier).Error(0)
}

func (m *MockSupplierRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %v", err)
	return domainErr.Code
}

// =============================================================================
// Client
// =============================================================================

func TestClientService_Create_Success(t *testing.T) {
	repo := new(MockClientRepository)
	svc := NewClientService(repo, nil)
	tenantID := uuid.New()

	repo.On("ExistsByDocument", mock.Anything, tenantID, "11222333000181").Return(false, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*partner.Client")).Return(nil)

	resp, err := svc.Create(context.Background(), tenantID, CreateClientRequest{
		Name:              "Comércio  Exemplo Ltda",
		Document:          "11.222.333/0001-81",
		StateRegistration: "isento",
		Address: &common.AddressInput{
			Street: "Rua Augusta", Number: "500", District: "Consolação",
			MunicipalityCode: "3550308", MunicipalityName: "São Paulo", UF: "SP", CEP: "01305-000",
		},
		Contact: ContactInput{ContactName: "Ana", Phone: "(11) 3333-4444", Email: "Ana@Exemplo.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Comercio Exemplo Ltda", resp.Name)
	assert.Equal(t, "cnpj", resp.DocumentKind)
	assert.Equal(t, "ISENTO", resp.StateRegistration)
	require.NotNil(t, resp.Address)
	assert.Equal(t, "SP", resp.Address.UF)
	assert.Equal(t, "1133334444", resp.Contact.Phone)
	assert.Equal(t, "ana@exemplo.com", resp.Contact.Email)
	assert.Equal(t, "active", resp.Status)
	repo.AssertExpectations(t)
}

func TestClientService_Create_DuplicateDocument(t *testing.T) {
	repo := new(MockClientRepository)
	svc := NewClientService(repo, nil)
	tenantID := uuid.New()
	repo.On("ExistsByDocument", mock.Anything, tenantID, "52998224725").Return(true, nil)

	_, err := svc.Create(context.Background(), tenantID, CreateClientRequest{Name: "Joao", Document: "529.982.247-25"})
	assert.Equal(t, "CLIENT_DOCUMENT_EXISTS", errorCode(t, err))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestClientService_Create_InvalidDocument(t *testing.T) {
	svc := NewClientService(new(MockClientRepository), nil)
	_, err := svc.Create(context.Background(), uuid.New(), CreateClientRequest{Name: "Joao", Document: "123"})
	assert.Error(t, err)
}

func TestClientService_GetByID_NotFound(t *testing.T) {
	repo := new(MockClientRepository)
	svc := NewClientService(repo, nil)
	tenantID, id := uuid.New(), uuid.New()
	repo.On("FindByID", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

	_, err := svc.GetByID(context.Background(), tenantID, id)
	assert.Equal(t, "CLIENT_NOT_FOUND", errorCode(t, err))
}

func TestClientService_List(t *testing.T) {
	repo := new(MockClientRepository)
	svc := NewClientService(repo, nil)
	tenantID := uuid.New()
	client, err := partner.NewClient(tenantID, "Comercio", "11222333000181")
	require.NoError(t, err)

	repo.On("FindAll", mock.Anything, tenantID, mock.MatchedBy(func(f partner.ListFilter) bool {
		return f.Status == partner.StatusActive && f.PageSize == shared.DefaultPageSize && f.Search == "comercio"
	})).Return([]partner.Client{*client}, int64(1), nil)

	page, err := svc.List(context.Background(), tenantID, ListFilter{Search: " comércio ", Status: "active"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, client.ID, page.Items[0].ID)
	assert.Equal(t, 1, page.TotalPages)
}

func TestClientService_DeactivateAndDelete(t *testing.T) {
	repo := new(MockClientRepository)
	svc := NewClientService(repo, nil)
	tenantID := uuid.New()
	client, err := partner.NewClient(tenantID, "Comercio", "11222333000181")
	require.NoError(t, err)

	repo.On("FindByID", mock.Anything, tenantID, client.ID).Return(client, nil)
	repo.On("Save", mock.Anything, client).Return(nil)
	repo.On("Delete", mock.Anything, tenantID, client.ID).Return(nil)

	resp, err := svc.Deactivate(context.Background(), tenantID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "inactive", resp.Status)

	_, err = svc.Deactivate(context.Background(), tenantID, client.ID)
	assert.Equal(t, "ALREADY_INACTIVE", errorCode(t, err))

	require.NoError(t, svc.Delete(context.Background(), tenantID, client.ID))
	repo.AssertCalled(t, "Delete", mock.Anything, tenantID, client.ID)
}

// =============================================================================
// Insurer
// =============================================================================

func TestInsurerService_Create_WithPolicy(t *testing.T) {
	repo := new(MockInsurerRepository)
	svc := NewInsurerService(repo, nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	tenantID := uuid.New()

	repo.On("ExistsByCNPJ", mock.Anything, tenantID, "11222333000181").Return(false, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*partner.Insurer")).Return(nil)

	resp, err := svc.Create(context.Background(), tenantID, CreateInsurerRequest{
		Name: "Seguradora Alfa",
		CNPJ: "11222333000181",
		Policy: &PolicyInput{
			Number:  "ap-0001",
			StartAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "AP-0001", resp.PolicyNumber)
	assert.True(t, resp.PolicyValid)
}

func TestInsurerService_Create_Duplicate(t *testing.T) {
	repo := new(MockInsurerRepository)
	svc := NewInsurerService(repo, nil)
	tenantID := uuid.New()
	repo.On("ExistsByCNPJ", mock.Anything, tenantID, "11222333000181").Return(true, nil)

	_, err := svc.Create(context.Background(), tenantID, CreateInsurerRequest{Name: "Seguradora Alfa", CNPJ: "11222333000181"})
	assert.Equal(t, "INSURER_CNPJ_EXISTS", errorCode(t, err))
}

func TestInsurerService_Update_InvalidPolicyPeriod(t *testing.T) {
	repo := new(MockInsurerRepository)
	svc := NewInsurerService(repo, nil)
	tenantID := uuid.New()
	insurer, err := partner.NewInsurer(tenantID, "Seguradora Alfa", "11222333000181")
	require.NoError(t, err)
	repo.On("FindByID", mock.Anything, tenantID, insurer.ID).Return(insurer, nil)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Update(context.Background(), tenantID, insurer.ID, UpdateInsurerRequest{
		Name:   "Seguradora Beta",
		Policy: &PolicyInput{Number: "X1", StartAt: start, EndAt: start.AddDate(0, 0, -1)},
	})
	assert.Equal(t, "INVALID_POLICY_PERIOD", errorCode(t, err))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// =============================================================================
// Supplier
// =============================================================================

func TestSupplierService_Create_Success(t *testing.T) {
	repo := new(MockSupplierRepository)
	svc := NewSupplierService(repo, nil)
	tenantID := uuid.New()

	repo.On("ExistsByDocument", mock.Anything, tenantID, "11222333000181").Return(false, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*partner.Supplier")).Return(nil)

	resp, err := svc.Create(context.Background(), tenantID, CreateSupplierRequest{
		Name: "Auto Pecas Sul", Document: "11222333000181", Category: "parts",
	})
	require.NoError(t, err)
	assert.Equal(t, "parts", resp.Category)
	assert.Nil(t, resp.Address)
}

func TestSupplierService_Create_InvalidCategory(t *testing.T) {
	svc := NewSupplierService(new(MockSupplierRepository), nil)
	_, err := svc.Create(context.Background(), uuid.New(), CreateSupplierRequest{
		Name: "Auto Pecas Sul", Document: "11222333000181", Category: "food",
	})
	assert.Equal(t, "INVALID_CATEGORY", errorCode(t, err))
}

func TestSupplierService_Exists(t *testing.T) {
	repo := new(MockSupplierRepository)
	svc := NewSupplierService(repo, nil)
	tenantID := uuid.New()
	supplier, err := partner.NewSupplier(tenantID, "Pneus Sul", "11222333000181", partner.SupplierCategoryTires)
	require.NoError(t, err)
	missing := uuid.New()

	repo.On("FindByID", mock.Anything, tenantID, supplier.ID).Return(supplier, nil)
	repo.On("FindByID", mock.Anything, tenantID, missing).Return(nil, shared.ErrNotFound)

	ok, err := svc.Exists(context.Background(), tenantID, supplier.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(context.Background(), tenantID, missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSupplierService_Delete_NotFound(t *testing.T) {
	repo := new(MockSupplierRepository)
	svc := NewSupplierService(repo, nil)
	tenantID, id := uuid.New(), uuid.New()
	repo.On("FindByID", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

	err := svc.Delete(context.Background(), tenantID, id)
	assert.Equal(t, "SUPPLIER_NOT_FOUND", errorCode(t, err))
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
