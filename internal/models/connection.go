package models

import "time"

// Connection providers supported by the data layer.
const (
	// ProviderPostgres identifies PostgreSQL target connections.
	ProviderPostgres = "postgres"
	// ProviderSQLite identifies SQLite target connections.
	ProviderSQLite = "sqlite"
)

// Connection represents a named credential pointing at a target business database.
type Connection struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name       string `gorm:"type:text;not null;uniqueIndex"` // Unique display name.
	Provider   string `gorm:"type:text;not null"`             // Dialect tag, e.g. postgres.
	ConnString string `gorm:"type:text;not null"`             // DSN for the target database.

	IsActive bool `gorm:"not null;default:true"` // Inactive connections disable dependent tables.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
