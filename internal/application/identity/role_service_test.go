package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRoleService() (*RoleService, *MockRoleRepository, *MockUserRepository, *recordingPublisher) {
	roles := new(MockRoleRepository)
	users := new(MockUserRepository)
	pub := &recordingPublisher{}
	return NewRoleService(roles, users, pub, zap.NewNop()), roles, users, pub
}

func TestRoleService_Create(t *testing.T) {
	svc, roles, _, pub := newRoleService()
	tenantID := uuid.New()

	roles.On("ExistsByCode", mock.Anything, tenantID, "DISPATCH").Return(false, nil)
	roles.On("Create", mock.Anything, mock.AnythingOfType("*identity.Role")).Return(nil)

	dto, err := svc.Create(context.Background(), CreateRoleInput{
		TenantID:    tenantID,
		Code:        "dispatch",
		Name:        "Expedição",
		Description: "Emite manifestos",
		Permissions: []string{"manifest:read", "manifest:transmit", "manifest:read"},
	})
	require.NoError(t, err)
	assert.Equal(t, "DISPATCH", dto.Code)
	assert.Equal(t, "Expedicao", dto.Name)
	assert.ElementsMatch(t, []string{"manifest:read", "manifest:transmit"}, dto.Permissions)
	assert.False(t, dto.IsSystemRole)
	assert.Contains(t, pub.types(), identity.EventTypeRoleCreated)
}

func TestRoleService_Create_DuplicateCode(t *testing.T) {
	svc, roles, _, _ := newRoleService()
	tenantID := uuid.New()
	roles.On("ExistsByCode", mock.Anything, tenantID, "DISPATCH").Return(true, nil)

	_, err := svc.Create(context.Background(), CreateRoleInput{TenantID: tenantID, Code: "DISPATCH", Name: "Dispatch"})
	assert.Equal(t, "ROLE_CODE_EXISTS", domainCode(t, err))
}

func TestRoleService_Create_UnknownPermission(t *testing.T) {
	svc, roles, _, _ := newRoleService()
	tenantID := uuid.New()
	roles.On("ExistsByCode", mock.Anything, tenantID, "DISPATCH").Return(false, nil)

	_, err := svc.Create(context.Background(), CreateRoleInput{
		TenantID: tenantID, Code: "DISPATCH", Name: "Dispatch", Permissions: []string{"manifest:fly"},
	})
	assert.Equal(t, "INVALID_PERMISSION", domainCode(t, err))
	roles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRoleService_Delete(t *testing.T) {
	tenantID := uuid.New()

	t.Run("unused custom role", func(t *testing.T) {
		svc, roles, users, _ := newRoleService()
		role := createTestRole(t, tenantID)
		roles.On("FindByID", mock.Anything, tenantID, role.ID).Return(role, nil)
		users.On("CountByRole", mock.Anything, role.ID).Return(int64(0), nil)
		roles.On("Delete", mock.Anything, tenantID, role.ID).Return(nil)

		require.NoError(t, svc.Delete(context.Background(), tenantID, role.ID))
		roles.AssertExpectations(t)
	})

	t.Run("role in use", func(t *testing.T) {
		svc, roles, users, _ := newRoleService()
		role := createTestRole(t, tenantID)
		roles.On("FindByID", mock.Anything, tenantID, role.ID).Return(role, nil)
		users.On("CountByRole", mock.Anything, role.ID).Return(int64(3), nil)

		err := svc.Delete(context.Background(), tenantID, role.ID)
		assert.Equal(t, "ROLE_IN_USE", domainCode(t, err))
		roles.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("system role", func(t *testing.T) {
		svc, roles, users, _ := newRoleService()
		role, err := identity.NewSystemRole(tenantID, identity.RoleCodeViewer, "Consulta")
		require.NoError(t, err)
		roles.On("FindByID", mock.Anything, tenantID, role.ID).Return(role, nil)
		users.On("CountByRole", mock.Anything, role.ID).Return(int64(0), nil)

		err = svc.Delete(context.Background(), tenantID, role.ID)
		assert.Equal(t, "CANNOT_DELETE_SYSTEM_ROLE", domainCode(t, err))
	})

	t.Run("not found", func(t *testing.T) {
		svc, roles, _, _ := newRoleService()
		id := uuid.New()
		roles.On("FindByID", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

		err := svc.Delete(context.Background(), tenantID, id)
		assert.Equal(t, "ROLE_NOT_FOUND", domainCode(t, err))
	})
}

func TestRoleService_SetPermissions_AdminIsFrozen(t *testing.T) {
	svc, roles, _, _ := newRoleService()
	tenantID := uuid.New()
	admin, err := identity.NewSystemRole(tenantID, identity.RoleCodeAdmin, "Administrador")
	require.NoError(t, err)
	roles.On("FindByID", mock.Anything, tenantID, admin.ID).Return(admin, nil)

	_, err = svc.SetPermissions(context.Background(), tenantID, admin.ID, []string{"manifest:read"})
	assert.Equal(t, "CANNOT_MODIFY_ADMIN", domainCode(t, err))
	roles.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRoleService_SetPermissions(t *testing.T) {
	svc, roles, _, pub := newRoleService()
	tenantID := uuid.New()
	role := createTestRole(t, tenantID, "manifest:read")
	roles.On("FindByID", mock.Anything, tenantID, role.ID).Return(role, nil)
	roles.On("Update", mock.Anything, role).Return(nil)

	dto, err := svc.SetPermissions(context.Background(), tenantID, role.ID, []string{"vehicle:read", "driver:read"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vehicle:read", "driver:read"}, dto.Permissions)
	assert.Contains(t, pub.types(), identity.EventTypeRolePermissionsChanged)
}

func TestRoleService_EnsureDefaultRoles(t *testing.T) {
	svc, roles, _, _ := newRoleService()
	tenantID := uuid.New()
	existing, err := identity.NewSystemRole(tenantID, identity.RoleCodeAdmin, "Administrador")
	require.NoError(t, err)

	roles.On("FindByCode", mock.Anything, tenantID, identity.RoleCodeAdmin).Return(existing, nil)
	roles.On("FindByCode", mock.Anything, tenantID, mock.Anything).Return(nil, shared.ErrNotFound)
	roles.On("Create", mock.Anything, mock.AnythingOfType("*identity.Role")).Return(nil)

	got, err := svc.EnsureDefaultRoles(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Same(t, existing, got[0])
	roles.AssertNumberOfCalls(t, "Create", 2)
}

func TestRoleService_Permissions(t *testing.T) {
	svc, _, _, _ := newRoleService()
	perms := svc.Permissions()
	require.NotEmpty(t, perms)

	codes := make([]string, len(perms))
	for i, p := range perms {
		codes[i] = p.Code
	}
	assert.Contains(t, codes, "manifest:transmit")
	assert.Contains(t, codes, "tenant:update")
	assert.NotContains(t, codes, "tenant:delete")
}
