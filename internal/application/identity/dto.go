package identity

import (
	"time"

	"github.com/google/uuid"
)

// LoginInput contains the input for user login
type LoginInput struct {
	Username string
	Password string
	IP       string // Client IP for login tracking
}

// TokenResult is an issued access/refresh pair
type TokenResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	TokenResult
	User               UserInfo
	MustChangePassword bool
}

// UserInfo contains basic user information returned after login
type UserInfo struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Username    string
	DisplayName string
	Email       string
	Phone       string
	Permissions []string
	RoleIDs     []uuid.UUID
}

// RefreshTokenInput contains the input for token refresh
type RefreshTokenInput struct {
	RefreshToken string
}

// LogoutInput identifies the tokens to revoke. The refresh token is
// optional; when given it is revoked too so it cannot mint new pairs.
type LogoutInput struct {
	UserID         uuid.UUID
	TenantID       uuid.UUID
	TokenJTI       string
	TokenExpiresAt time.Time
	RefreshToken   string
}

// ChangePasswordInput contains the input for password change
type ChangePasswordInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	OldPassword string
	NewPassword string
}

// CurrentUserResult contains the current user's information
type CurrentUserResult struct {
	User   UserInfo
	Tenant TenantSummary
}

// TenantSummary is the part of the issuing company shown to every user
type TenantSummary struct {
	ID          uuid.UUID
	Code        string
	LegalName   string
	CNPJ        string
	Environment string
	Status      string
}

// ForceLogoutInput contains the input for force logout operation
type ForceLogoutInput struct {
	AdminUserID  uuid.UUID
	TargetUserID uuid.UUID
	TenantID     uuid.UUID
	Reason       string
}
