package models

import "time"

// Role is a named permission bundle operators can be members of.
type Role struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Unique role name.
	Description string `gorm:"type:text"`                      // Free-form description.

	IsActive bool `gorm:"not null;default:true"` // Inactive roles grant nothing.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// UserRole links an operator to a role.
type UserRole struct {
	UserID uint64 `gorm:"primaryKey;autoIncrement:false"` // Operator ID.
	RoleID uint64 `gorm:"primaryKey;autoIncrement:false"` // Role ID.
}

// TableName overrides the gorm pluralization for the mapping table.
func (UserRole) TableName() string { return "user_roles" }
