package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/auth"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "Password123"

func createTestUser(t *testing.T, tenantID uuid.UUID) *identity.User {
	t.Helper()
	user, err := identity.NewActiveUser(tenantID, "testuser", testPassword)
	require.NoError(t, err)
	user.ClearDomainEvents()
	return user
}

func createTestRole(t *testing.T, tenantID uuid.UUID, perms ...string) *identity.Role {
	t.Helper()
	role, err := identity.NewRole(tenantID, "DISPATCH", "Dispatch")
	require.NoError(t, err)
	require.NoError(t, role.SetPermissions(perms))
	role.ClearDomainEvents()
	return role
}

func createTestTenant(t *testing.T) *identity.Tenant {
	t.Helper()
	addr, err := common.AddressInput{
		Street: "Rua Augusta", Number: "500", District: "Consolacao",
		MunicipalityCode: "3550308", MunicipalityName: "Sao Paulo", UF: "SP", CEP: "01305-000",
	}.ToAddress()
	require.NoError(t, err)
	tenant, err := identity.NewTenant("acme", "11.222.333/0001-81", "123456789110", "Acme Transportes", addr)
	require.NoError(t, err)
	tenant.ClearDomainEvents()
	return tenant
}

type authFixture struct {
	users     *MockUserRepository
	roles     *MockRoleRepository
	tenants   *MockTenantRepository
	blacklist *auth.InMemoryTokenBlacklist
	jwt       *auth.JWTService
	service   *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:     new(MockUserRepository),
		roles:     new(MockRoleRepository),
		tenants:   new(MockTenantRepository),
		blacklist: auth.NewInMemoryTokenBlacklist(),
		jwt: auth.NewJWTService(config.JWTConfig{
			Secret:                 "test-secret-key-32-characters-long",
			AccessTokenExpiration:  15 * time.Minute,
			RefreshTokenExpiration: 7 * 24 * time.Hour,
			Issuer:                 "test-issuer",
			MaxRefreshCount:        2,
		}),
	}
	f.service = NewAuthService(f.users, f.roles, f.tenants, f.jwt, f.blacklist, DefaultAuthServiceConfig(), zap.NewNop())
	return f
}

// expectSubject wires the role loading done for every issued token
func (f *authFixture) expectSubject(user *identity.User, roles ...*identity.Role) {
	ids := make([]uuid.UUID, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	f.users.On("LoadUserRoles", mock.Anything, user).Run(func(args mock.Arguments) {
		args.Get(1).(*identity.User).RoleIDs = ids
	}).Return(nil)
	if len(ids) > 0 {
		f.roles.On("FindByIDs", mock.Anything, user.TenantID, ids).Return(roles, nil)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture()
	tenant := createTestTenant(t)
	user := createTestUser(t, tenant.ID)
	role := createTestRole(t, tenant.ID, "manifest:read", "manifest:transmit", "vehicle:read")

	f.users.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	f.tenants.On("FindByID", mock.Anything, tenant.ID).Return(tenant, nil)
	f.expectSubject(user, role)
	f.users.On("Update", mock.Anything, user).Return(nil)

	result, err := f.service.Login(context.Background(), LoginInput{Username: "testuser", Password: testPassword, IP: "10.0.0.1"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, tenant.ID, result.User.TenantID)
	assert.Equal(t, []string{"manifest:read", "manifest:transmit", "vehicle:read"}, result.User.Permissions)
	assert.Equal(t, "10.0.0.1", user.LastLoginIP)

	claims, err := f.jwt.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.HasPermission("manifest:transmit"))
	assert.Equal(t, tenant.ID.String(), claims.TenantID)

	f.users.AssertExpectations(t)
	f.roles.AssertExpectations(t)
}

func TestAuthService_Login_DisabledRoleGrantsNothing(t *testing.T) {
	f := newAuthFixture()
	tenant := createTestTenant(t)
	user := createTestUser(t, tenant.ID)
	role := createTestRole(t, tenant.ID, "manifest:read")
	require.NoError(t, role.Disable())

	f.users.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	f.tenants.On("FindByID", mock.Anything, tenant.ID).Return(tenant, nil)
	f.expectSubject(user, role)
	f.users.On("Update", mock.Anything, user).Return(nil)

	result, err := f.service.Login(context.Background(), LoginInput{Username: "testuser", Password: testPassword})
	require.NoError(t, err)
	assert.Empty(t, result.User.Permissions)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	f := newAuthFixture()
	user := createTestUser(t, uuid.New())

	f.users.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)

	_, err := f.service.Login(context.Background(), LoginInput{Username: "testuser", Password: "wrongpass1"})
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "INVALID_CREDENTIALS", domainErr.Code)
	assert.Equal(t, 1, user.FailedAttempts)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	f := newAuthFixture()
	f.users.On("FindByUsername", mock.Anything, "ghost").Return(nil, shared.ErrNotFound)

	_, err := f.service.Login(context.Background(), LoginInput{Username: "ghost", Password: testPassword})
	assert.ErrorIs(t, err, errInvalidCredentials)
}

func TestAuthService_Login_AccountLocksAfterMaxAttempts(t *testing.T) {
	f := newAuthFixture()
	user := createTestUser(t, uuid.New())

	f.users.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)

	var err error
	for i := 0; i < 5; i++ {
		_, err = f.service.Login(context.Background(), LoginInput{Username: "testuser", Password: "wrongpass1"})
		require.Error(t, err)
	}

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "ACCOUNT_LOCKED", domainErr.Code)
	assert.True(t, user.IsLocked())
	require.NotNil(t, user.LockedUntil)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *user.LockedUntil, time.Minute)

	// the right password does not help while locked
	_, err = f.service.Login(context.Background(), LoginInput{Username: "testuser", Password: testPassword})
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "ACCOUNT_LOCKED", domainErr.Code)
}

func TestAuthService_Login_BlockedAccounts(t *testing.T) {
	tests := []struct {
		name   string
		status identity.UserStatus
		code   string
	}{
		{"deactivated", identity.UserStatusDeactivated, "ACCOUNT_DEACTIVATED"},
		{"pending", identity.UserStatusPending, "ACCOUNT_PENDING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			user := createTestUser(t, uuid.New())
			user.Status = tt.status
			f.users.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)

			_, err := f.service.Login(context.Background(), LoginInput{Username: "testuser", Password: testPassword})
			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.code, domainErr.Code)
			f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthService_Login_InactiveTenant(t *testing.T) {
	f := newAuthFixture()
	tenant := createTestTenant(t)
	require.NoError(t, tenant.Deactivate())
	user := createTestUser(t, tenant.ID)

	f.users.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	f.tenants.On("FindByID", mock.Anything, tenant.ID).Return(tenant, nil)

	_, err := f.service.Login(context.Background(), LoginInput{Username: "testuser", Password: testPassword})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "TENANT_INACTIVE", domainErr.Code)
}

func TestAuthService_RefreshToken_RotatesAndRevokesOld(t *testing.T) {
	f := newAuthFixture()
	tenant := createTestTenant(t)
	user := createTestUser(t, tenant.ID)
	role := createTestRole(t, tenant.ID, "trip:read")
	f.expectSubject(user, role)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	pair, err := f.jwt.GenerateTokenPair(auth.Subject{TenantID: tenant.ID, UserID: user.ID, Username: user.Username})
	require.NoError(t, err)

	result, err := f.service.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, result.RefreshToken)

	claims, err := f.jwt.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"trip:read"}, claims.Permissions)
	assert.Equal(t, 1, claims.RefreshCount)

	// replaying the rotated token fails
	_, err = f.service.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: pair.RefreshToken})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "TOKEN_REVOKED", domainErr.Code)
}

func TestAuthService_RefreshToken_MaxRefreshCount(t *testing.T) {
	f := newAuthFixture()
	tenant := createTestTenant(t)
	user := createTestUser(t, tenant.ID)
	f.expectSubject(user)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	pair, err := f.jwt.GenerateTokenPair(auth.Subject{TenantID: tenant.ID, UserID: user.ID, Username: user.Username})
	require.NoError(t, err)

	token := pair.RefreshToken
	for i := 0; i < 2; i++ {
		res, err := f.service.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: token})
		require.NoError(t, err)
		token = res.RefreshToken
	}

	_, err = f.service.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: token})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "TOKEN_MAX_REFRESH", domainErr.Code)
}

func TestAuthService_RefreshToken_InvalidToken(t *testing.T) {
	f := newAuthFixture()

	_, err := f.service.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: "not-a-token"})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "TOKEN_INVALID", domainErr.Code)
}

func TestAuthService_RefreshToken_InactiveUser(t *testing.T) {
	f := newAuthFixture()
	tenant := createTestTenant(t)
	user := createTestUser(t, tenant.ID)
	require.NoError(t, user.Deactivate())
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	pair, err := f.jwt.GenerateTokenPair(auth.Subject{TenantID: tenant.ID, UserID: user.ID})
	require.NoError(t, err)

	_, err = f.service.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: pair.RefreshToken})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "ACCOUNT_INACTIVE", domainErr.Code)
}

func TestAuthService_Logout_RevokesTokens(t *testing.T) {
	f := newAuthFixture()
	tenantID, userID := uuid.New(), uuid.New()
	pair, err := f.jwt.GenerateTokenPair(auth.Subject{TenantID: tenantID, UserID: userID})
	require.NoError(t, err)

	err = f.service.Logout(context.Background(), LogoutInput{
		UserID:         userID,
		TenantID:       tenantID,
		TokenJTI:       pair.AccessTokenID,
		TokenExpiresAt: pair.AccessTokenExpiresAt,
		RefreshToken:   pair.RefreshToken,
	})
	require.NoError(t, err)

	access, err := f.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	revoked, err := f.service.IsTokenRevoked(context.Background(), access)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = f.blacklist.IsRevoked(context.Background(), pair.RefreshTokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestAuthService_Logout_WithoutBlacklist(t *testing.T) {
	f := newAuthFixture()
	f.service.blacklist = nil
	assert.NoError(t, f.service.Logout(context.Background(), LogoutInput{TokenJTI: "abc", TokenExpiresAt: time.Now().Add(time.Minute)}))
}

func TestAuthService_ForceLogout(t *testing.T) {
	f := newAuthFixture()
	tenantID, adminID := uuid.New(), uuid.New()
	target := createTestUser(t, tenantID)
	f.users.On("FindByIDForTenant", mock.Anything, tenantID, target.ID).Return(target, nil)

	issued := time.Now().Add(-time.Minute)
	f.jwt.WithClock(func() time.Time { return issued })
	pair, err := f.jwt.GenerateTokenPair(auth.Subject{TenantID: tenantID, UserID: target.ID})
	require.NoError(t, err)
	f.jwt.WithClock(time.Now)

	require.NoError(t, f.service.ForceLogout(context.Background(), ForceLogoutInput{
		AdminUserID: adminID, TargetUserID: target.ID, TenantID: tenantID, Reason: "left the company",
	}))

	claims, err := f.jwt.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	revoked, err := f.service.IsTokenRevoked(context.Background(), claims)
	require.NoError(t, err)
	assert.True(t, revoked)

	err = f.service.ForceLogout(context.Background(), ForceLogoutInput{AdminUserID: adminID, TargetUserID: adminID, TenantID: tenantID})
	assert.Error(t, err)
}

func TestAuthService_GetCurrentUser(t *testing.T) {
	f := newAuthFixture()
	tenant := createTestTenant(t)
	user := createTestUser(t, tenant.ID)
	role := createTestRole(t, tenant.ID, "driver:read")

	f.users.On("FindByIDForTenant", mock.Anything, tenant.ID, user.ID).Return(user, nil)
	f.tenants.On("FindByID", mock.Anything, tenant.ID).Return(tenant, nil)
	f.expectSubject(user, role)

	result, err := f.service.GetCurrentUser(context.Background(), tenant.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "testuser", result.User.Username)
	assert.Equal(t, []string{"driver:read"}, result.User.Permissions)
	assert.Equal(t, "ACME", result.Tenant.Code)
	assert.Equal(t, "homologation", result.Tenant.Environment)
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newAuthFixture()
	user := createTestUser(t, uuid.New())
	f.users.On("FindByIDForTenant", mock.Anything, user.TenantID, user.ID).Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)

	err := f.service.ChangePassword(context.Background(), ChangePasswordInput{
		TenantID: user.TenantID, UserID: user.ID, OldPassword: testPassword, NewPassword: "NewPassword456",
	})
	require.NoError(t, err)
	assert.True(t, user.VerifyPassword("NewPassword456"))

	err = f.service.ChangePassword(context.Background(), ChangePasswordInput{
		TenantID: user.TenantID, UserID: user.ID, OldPassword: "wrong-old-1", NewPassword: "Another789",
	})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "INVALID_PASSWORD", domainErr.Code)
}
