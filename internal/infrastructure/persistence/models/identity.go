package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
)

// UserModel is the persistence model for identity.User
type UserModel struct {
	TenantAggregateModel
	Username           string              `gorm:"type:varchar(100);not null;uniqueIndex"`
	Email              string              `gorm:"type:varchar(200)"`
	Phone              string              `gorm:"type:varchar(20)"`
	PasswordHash       string              `gorm:"type:varchar(255);not null"`
	DisplayName        string              `gorm:"type:varchar(200)"`
	Status             identity.UserStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	LastLoginAt        *time.Time
	LastLoginIP        string `gorm:"type:varchar(45)"`
	FailedAttempts     int    `gorm:"not null;default:0"`
	LockedUntil        *time.Time
	PasswordChangedAt  *time.Time
	MustChangePassword bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the row to a domain user. RoleIDs are loaded separately.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Username:            m.Username,
		Email:               m.Email,
		Phone:               m.Phone,
		PasswordHash:        m.PasswordHash,
		DisplayName:         m.DisplayName,
		Status:              m.Status,
		RoleIDs:             make([]uuid.UUID, 0),
		LastLoginAt:         m.LastLoginAt,
		LastLoginIP:         m.LastLoginIP,
		FailedAttempts:      m.FailedAttempts,
		LockedUntil:         m.LockedUntil,
		PasswordChangedAt:   m.PasswordChangedAt,
		MustChangePassword:  m.MustChangePassword,
	}
}

// UserModelFromDomain builds the row for a domain user
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{
		Username:           u.Username,
		Email:              u.Email,
		Phone:              u.Phone,
		PasswordHash:       u.PasswordHash,
		DisplayName:        u.DisplayName,
		Status:             u.Status,
		LastLoginAt:        u.LastLoginAt,
		LastLoginIP:        u.LastLoginIP,
		FailedAttempts:     u.FailedAttempts,
		LockedUntil:        u.LockedUntil,
		PasswordChangedAt:  u.PasswordChangedAt,
		MustChangePassword: u.MustChangePassword,
	}
	m.FromDomainTenantAggregateRoot(u.TenantAggregateRoot)
	return m
}

// UserRoleModel links a user to a role
type UserRoleModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UserRoleModel) TableName() string {
	return "user_roles"
}

// RoleModel is the persistence model for identity.Role
type RoleModel struct {
	TenantAggregateModel
	Code         string `gorm:"type:varchar(50);not null"`
	Name         string `gorm:"type:varchar(100);not null"`
	Description  string `gorm:"type:text"`
	IsSystemRole bool   `gorm:"not null;default:false"`
	IsEnabled    bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (RoleModel) TableName() string {
	return "roles"
}

// ToDomain converts the row to a domain role. Permissions are loaded separately.
func (m *RoleModel) ToDomain() *identity.Role {
	return &identity.Role{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Code:                m.Code,
		Name:                m.Name,
		Description:         m.Description,
		IsSystemRole:        m.IsSystemRole,
		IsEnabled:           m.IsEnabled,
		Permissions:         make([]identity.Permission, 0),
	}
}

// RoleModelFromDomain builds the row for a domain role
func RoleModelFromDomain(r *identity.Role) *RoleModel {
	m := &RoleModel{
		Code:         r.Code,
		Name:         r.Name,
		Description:  r.Description,
		IsSystemRole: r.IsSystemRole,
		IsEnabled:    r.IsEnabled,
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	return m
}

// RolePermissionModel is one permission granted to a role
type RolePermissionModel struct {
	RoleID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Code        string    `gorm:"type:varchar(100);primaryKey"`
	Resource    string    `gorm:"type:varchar(50);not null;index"`
	Action      string    `gorm:"type:varchar(50);not null"`
	Description string    `gorm:"type:varchar(200)"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RolePermissionModel) TableName() string {
	return "role_permissions"
}

// ToDomain converts the row to a domain permission
func (m *RolePermissionModel) ToDomain() identity.Permission {
	return identity.Permission{
		Code:        m.Code,
		Resource:    m.Resource,
		Action:      m.Action,
		Description: m.Description,
	}
}

// RolePermissionModelFromDomain builds a permission row for a role
func RolePermissionModelFromDomain(roleID, tenantID uuid.UUID, p identity.Permission) RolePermissionModel {
	return RolePermissionModel{
		RoleID:      roleID,
		TenantID:    tenantID,
		Code:        p.Code,
		Resource:    p.Resource,
		Action:      p.Action,
		Description: p.Description,
		CreatedAt:   time.Now(),
	}
}
