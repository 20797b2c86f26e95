package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "mdfe-test",
		MaxRefreshCount:        2,
	})
}

func newTestSubject() Subject {
	return Subject{
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Username:    "operador",
		RoleIDs:     []uuid.UUID{uuid.New()},
		Permissions: []string{"manifest:read", "manifest:transmit"},
	}
}

func TestNewJWTService_RefreshSecretFallback(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "only-secret"})
	assert.Equal(t, svc.secret, svc.refreshSecret)
}

func TestGenerateTokenPair(t *testing.T) {
	svc := newTestJWTService()
	sub := newTestSubject()

	pair, err := svc.GenerateTokenPair(sub)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessTokenID, pair.RefreshTokenID)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.RefreshTokenExpiresAt.After(pair.AccessTokenExpiresAt))

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sub.TenantID.String(), claims.TenantID)
	assert.Equal(t, sub.UserID.String(), claims.UserID)
	assert.Equal(t, "operador", claims.Username)
	assert.Equal(t, pair.AccessTokenID, claims.ID)
	assert.True(t, claims.HasPermission("manifest:transmit"))
	assert.Len(t, claims.RoleIDs, 1)

	refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refresh.Permissions)
	assert.Equal(t, 0, refresh.RefreshCount)
}

func TestGenerateTokenPair_RequiresIdentity(t *testing.T) {
	svc := newTestJWTService()

	sub := newTestSubject()
	sub.TenantID = uuid.Nil
	_, err := svc.GenerateTokenPair(sub)
	assert.ErrorIs(t, err, ErrMissingTenantID)

	sub = newTestSubject()
	sub.UserID = uuid.Nil
	_, err = svc.GenerateTokenPair(sub)
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestValidateAccessToken_Errors(t *testing.T) {
	svc := newTestJWTService()
	pair, err := svc.GenerateTokenPair(newTestSubject())
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token used as access", func(t *testing.T) {
		_, err := svc.ValidateAccessToken(pair.RefreshToken)
		assert.Error(t, err)
	})

	t.Run("access token used as refresh", func(t *testing.T) {
		_, err := svc.ValidateRefreshToken(pair.AccessToken)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestJWTService().WithClock(func() time.Time { return time.Now().Add(time.Hour) })
		_, err := later.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret:                "another-secret-key-at-least-32-chars",
			AccessTokenExpiration: time.Minute,
			Issuer:                "mdfe-test",
		})
		_, err := other.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other := newTestJWTService()
		other.issuer = "someone-else"
		_, err := other.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestJWTService()
	claims := svc.claimsFor(newTestSubject(), TokenTypeAccess, time.Now(), time.Minute, 0)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotate(t *testing.T) {
	svc := newTestJWTService()
	sub := newTestSubject()

	pair, err := svc.GenerateTokenPair(sub)
	require.NoError(t, err)

	for want := 1; want <= 2; want++ {
		refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
		require.NoError(t, err)

		sub.Permissions = append(sub.Permissions, "manifest:cancel")
		pair, err = svc.Rotate(refresh, sub)
		require.NoError(t, err)

		access, err := svc.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, want, access.RefreshCount)
		assert.True(t, access.HasPermission("manifest:cancel"))
	}

	refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	_, err = svc.Rotate(refresh, sub)
	assert.ErrorIs(t, err, ErrMaxRefreshExceeded)
}

func TestRotate_RejectsForeignSubject(t *testing.T) {
	svc := newTestJWTService()
	pair, err := svc.GenerateTokenPair(newTestSubject())
	require.NoError(t, err)

	refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Rotate(refresh, newTestSubject())
	assert.ErrorIs(t, err, ErrInvalidClaims)

	access, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	_, err = svc.Rotate(access, newTestSubject())
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestClaims_Helpers(t *testing.T) {
	tenantID, userID := uuid.New(), uuid.New()
	now := time.Now()
	c := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))},
		TenantID:         tenantID.String(),
		UserID:           userID.String(),
		Permissions:      []string{"vehicle:read"},
	}

	got, err := c.TenantUUID()
	require.NoError(t, err)
	assert.Equal(t, tenantID, got)

	gotUser, err := c.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, gotUser)

	assert.True(t, c.HasAnyPermission("vehicle:create", "vehicle:read"))
	assert.False(t, c.HasAnyPermission("vehicle:create"))
	assert.InDelta(t, time.Minute.Seconds(), c.RemainingTTL(now).Seconds(), 1)
	assert.Zero(t, c.RemainingTTL(now.Add(time.Hour)))

	c.TenantID = "nope"
	_, err = c.TenantUUID()
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
