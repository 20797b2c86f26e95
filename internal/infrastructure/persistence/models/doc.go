// Package models contains GORM persistence models for the identity context.
//
// Users and roles keep their domain structs free of GORM tags because their
// role assignments and permissions live in join tables that the repositories
// load separately. The other aggregates carry their column mapping directly.
//
// Structure:
// - base.go: shared aggregate columns and mapping helpers
// - identity.go: users, user_roles, roles and role_permissions
package models
