package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/infrastructure/config"
)

// Token types
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrMissingToken       = errors.New("missing bearer token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidTokenType   = errors.New("invalid token type")
	ErrInvalidClaims      = errors.New("invalid token claims")
	ErrMissingTenantID    = errors.New("missing tenant_id in token")
	ErrMissingUserID      = errors.New("missing user_id in token")
	ErrMaxRefreshExceeded = errors.New("maximum refresh count exceeded")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// Claims are the JWT claims issued to a user of a tenant
type Claims struct {
	jwt.RegisteredClaims
	TenantID     string   `json:"tenant_id"`
	UserID       string   `json:"user_id"`
	Username     string   `json:"username"`
	RoleIDs      []string `json:"role_ids,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
	TokenType    string   `json:"token_type"`
	RefreshCount int      `json:"refresh_count,omitempty"`
}

// Subject identifies who a token pair is issued to. Permissions are resolved
// by the caller at issue time so a refresh picks up role changes.
type Subject struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Username    string
	RoleIDs     []uuid.UUID
	Permissions []string
}

// TokenPair is an access token plus the refresh token that can renew it
type TokenPair struct {
	AccessToken           string
	AccessTokenID         string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenID        string
	RefreshTokenExpiresAt time.Time
	TokenType             string
}

// JWTService issues and validates HMAC signed tokens
type JWTService struct {
	secret          []byte
	refreshSecret   []byte
	issuer          string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	maxRefreshCount int
	now             func() time.Time
}

// NewJWTService creates a token service from configuration. Refresh tokens
// are signed with the access secret when no refresh secret is set.
func NewJWTService(cfg config.JWTConfig) *JWTService {
	refreshSecret := cfg.RefreshSecret
	if refreshSecret == "" {
		refreshSecret = cfg.Secret
	}
	return &JWTService{
		secret:          []byte(cfg.Secret),
		refreshSecret:   []byte(refreshSecret),
		issuer:          cfg.Issuer,
		accessTTL:       cfg.AccessTokenExpiration,
		refreshTTL:      cfg.RefreshTokenExpiration,
		maxRefreshCount: cfg.MaxRefreshCount,
		now:             time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

// AccessTTL returns the configured access token lifetime
func (s *JWTService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// GenerateTokenPair issues a fresh access/refresh pair for a login
func (s *JWTService) GenerateTokenPair(sub Subject) (*TokenPair, error) {
	return s.issuePair(sub, 0)
}

// Rotate issues a new pair from validated refresh claims. The refresh
// counter carries over so a session cannot be extended forever.
func (s *JWTService) Rotate(refresh *Claims, sub Subject) (*TokenPair, error) {
	if refresh.TokenType != TokenTypeRefresh {
		return nil, ErrInvalidTokenType
	}
	if s.maxRefreshCount > 0 && refresh.RefreshCount >= s.maxRefreshCount {
		return nil, ErrMaxRefreshExceeded
	}
	if refresh.UserID != sub.UserID.String() || refresh.TenantID != sub.TenantID.String() {
		return nil, ErrInvalidClaims
	}
	return s.issuePair(sub, refresh.RefreshCount+1)
}

func (s *JWTService) issuePair(sub Subject, refreshCount int) (*TokenPair, error) {
	if sub.TenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	if sub.UserID == uuid.Nil {
		return nil, ErrMissingUserID
	}

	now := s.now()
	access := s.claimsFor(sub, TokenTypeAccess, now, s.accessTTL, refreshCount)
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := s.claimsFor(sub, TokenTypeRefresh, now, s.refreshTTL, refreshCount)
	// refresh tokens only need identity, permissions are reloaded on rotation
	refresh.Permissions = nil
	refresh.RoleIDs = nil
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(s.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:           accessToken,
		AccessTokenID:         access.ID,
		AccessTokenExpiresAt:  access.ExpiresAt.Time,
		RefreshToken:          refreshToken,
		RefreshTokenID:        refresh.ID,
		RefreshTokenExpiresAt: refresh.ExpiresAt.Time,
		TokenType:             "Bearer",
	}, nil
}

func (s *JWTService) claimsFor(sub Subject, tokenType string, now time.Time, ttl time.Duration, refreshCount int) *Claims {
	roleIDs := make([]string, len(sub.RoleIDs))
	for i, id := range sub.RoleIDs {
		roleIDs[i] = id.String()
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   sub.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID:     sub.TenantID.String(),
		UserID:       sub.UserID.String(),
		Username:     sub.Username,
		RoleIDs:      roleIDs,
		Permissions:  slices.Clone(sub.Permissions),
		TokenType:    tokenType,
		RefreshCount: refreshCount,
	}
}

// ValidateAccessToken parses an access token and checks its claims
func (s *JWTService) ValidateAccessToken(token string) (*Claims, error) {
	return s.parse(token, s.secret, TokenTypeAccess)
}

// ValidateRefreshToken parses a refresh token and checks its claims
func (s *JWTService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.parse(token, s.refreshSecret, TokenTypeRefresh)
}

func (s *JWTService) parse(tokenString string, secret []byte, expectedType string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expectedType {
		return nil, ErrInvalidTokenType
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// TenantUUID parses the tenant claim
func (c *Claims) TenantUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.TenantID)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return id, nil
}

// UserUUID parses the user claim
func (c *Claims) UserUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return id, nil
}

// HasPermission checks a single permission code
func (c *Claims) HasPermission(code string) bool {
	return slices.Contains(c.Permissions, code)
}

// HasAnyPermission reports whether at least one code is granted
func (c *Claims) HasAnyPermission(codes ...string) bool {
	return slices.ContainsFunc(codes, c.HasPermission)
}

// RemainingTTL is how long the token stays valid, zero once expired
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}
