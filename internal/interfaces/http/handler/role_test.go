package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRoleService struct {
	mock.Mock
}

func (m *mockRoleService) role(args mock.Arguments) (*identity.RoleDTO, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.RoleDTO), args.Error(1)
}

func (m *mockRoleService) Create(ctx context.Context, input identity.CreateRoleInput) (*identity.RoleDTO, error) {
	return m.role(m.Called(ctx, input))
}

func (m *mockRoleService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error) {
	return m.role(m.Called(ctx, tenantID, id))
}

func (m *mockRoleService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[identity.RoleDTO], error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[identity.RoleDTO]), args.Error(1)
}

func (m *mockRoleService) Update(ctx context.Context, input identity.UpdateRoleInput) (*identity.RoleDTO, error) {
	return m.role(m.Called(ctx, input))
}

func (m *mockRoleService) SetPermissions(ctx context.Context, tenantID, id uuid.UUID, codes []string) (*identity.RoleDTO, error) {
	return m.role(m.Called(ctx, tenantID, id, codes))
}

func (m *mockRoleService) Enable(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error) {
	return m.role(m.Called(ctx, tenantID, id))
}

func (m *mockRoleService) Disable(ctx context.Context, tenantID, id uuid.UUID) (*identity.RoleDTO, error) {
	return m.role(m.Called(ctx, tenantID, id))
}

func (m *mockRoleService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *mockRoleService) Permissions() []identity.PermissionDTO {
	return m.Called().Get(0).([]identity.PermissionDTO)
}

func roleRouter(svc RoleService) *gin.Engine {
	h := NewRoleHandler(svc)
	r := authed()
	r.GET("/roles/permissions", h.Permissions)
	r.POST("/roles", h.Create)
	r.GET("/roles", h.List)
	r.GET("/roles/:id", h.GetByID)
	r.PUT("/roles/:id", h.Update)
	r.PUT("/roles/:id/permissions", h.SetPermissions)
	r.POST("/roles/:id/enable", h.Enable)
	r.POST("/roles/:id/disable", h.Disable)
	r.DELETE("/roles/:id", h.Delete)
	return r
}

func TestRoleHandler_Create(t *testing.T) {
	svc := new(mockRoleService)
	svc.On("Create", mock.Anything, identity.CreateRoleInput{
		TenantID: testTenantID, CreatedBy: testUserID, Code: "dispatcher", Name: "Dispatcher",
		Permissions: []string{"manifest:read", "manifest:transmit"},
	}).Return(&identity.RoleDTO{Code: "dispatcher"}, nil)

	w := perform(roleRouter(svc), http.MethodPost, "/roles", CreateRoleRequest{
		Code: "dispatcher", Name: "Dispatcher", Permissions: []string{"manifest:read", "manifest:transmit"},
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	svc.AssertExpectations(t)
}

func TestRoleHandler_UnknownPermission(t *testing.T) {
	id := uuid.New()
	svc := new(mockRoleService)
	svc.On("SetPermissions", mock.Anything, testTenantID, id, []string{"manifest:fly"}).
		Return(nil, shared.NewDomainError("INVALID_PERMISSION", "Unknown permission manifest:fly"))

	w := perform(roleRouter(svc), http.MethodPut, "/roles/"+id.String()+"/permissions", SetPermissionsRequest{Permissions: []string{"manifest:fly"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PERMISSION", errCode(t, w))
}

func TestRoleHandler_Catalog(t *testing.T) {
	svc := new(mockRoleService)
	svc.On("Permissions").Return([]identity.PermissionDTO{{Code: "manifest:transmit", Resource: "manifest", Action: "transmit"}})

	w := perform(roleRouter(svc), http.MethodGet, "/roles/permissions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []identity.PermissionDTO
	decodeData(t, w, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "transmit", got[0].Action)
}

func TestRoleHandler_ListAndToggle(t *testing.T) {
	id := uuid.New()
	svc := new(mockRoleService)
	svc.On("List", mock.Anything, testTenantID, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Search == "disp" && f.Page == 1
	})).Return(&shared.Paginated[identity.RoleDTO]{Items: []identity.RoleDTO{{Code: "dispatcher"}}, Total: 1, Page: 1, PageSize: 20}, nil)
	svc.On("GetByID", mock.Anything, testTenantID, id).Return(&identity.RoleDTO{ID: id}, nil)
	svc.On("Update", mock.Anything, identity.UpdateRoleInput{TenantID: testTenantID, ID: id, Name: "Ops"}).Return(&identity.RoleDTO{ID: id}, nil)
	svc.On("Enable", mock.Anything, testTenantID, id).Return(&identity.RoleDTO{ID: id, IsEnabled: true}, nil)
	svc.On("Disable", mock.Anything, testTenantID, id).Return(&identity.RoleDTO{ID: id}, nil)
	svc.On("Delete", mock.Anything, testTenantID, id).Return(shared.NewDomainError("CANNOT_DELETE_SYSTEM_ROLE", "System roles cannot be deleted"))
	r := roleRouter(svc)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/roles?search=disp", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/roles/"+id.String(), nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPut, "/roles/"+id.String(), UpdateRoleRequest{Name: "Ops"}).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/roles/"+id.String()+"/enable", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/roles/"+id.String()+"/disable", nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, perform(r, http.MethodDelete, "/roles/"+id.String(), nil).Code)
	svc.AssertExpectations(t)
}
