package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit operation kinds.
const (
	// AuditOpCreate records a row insert.
	AuditOpCreate = "CREATE"
	// AuditOpUpdate records a row update.
	AuditOpUpdate = "UPDATE"
	// AuditOpSetStatus records a status transition.
	AuditOpSetStatus = "SET_STATUS"
)

// AuditLog is an append-only record of one mutating operation.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   uint64 `gorm:"not null;index"` // Acting operator ID.
	Username string `gorm:"type:text"`      // Acting operator name, denormalized.

	Operation string `gorm:"type:text;not null"` // CREATE, UPDATE, SET_STATUS or a custom action name.

	ConnectionName string `gorm:"type:text"`                // Target connection name, denormalized.
	SchemaName     string `gorm:"type:text"`                // Target schema.
	TargetTable    string `gorm:"column:table_name;type:text;not null;index"` // Target table.

	PrimaryKeyColumn string `gorm:"type:text"` // Primary key column name.
	PrimaryKeyValue  string `gorm:"type:text"` // Stringified primary key value.

	IPAddress string `gorm:"type:text"` // Requester IP.
	UserAgent string `gorm:"type:text"` // Requester user agent, truncated.
	RequestID string `gorm:"type:text"` // Correlation ID of the originating request.

	OldValues datatypes.JSON `gorm:"type:jsonb"` // Snapshot before the mutation, null when empty.
	NewValues datatypes.JSON `gorm:"type:jsonb"` // Snapshot after the mutation, null when empty.

	CreatedAtUTC time.Time `gorm:"not null;autoCreateTime;index"` // Mutation timestamp.
}

// TableName overrides the gorm pluralization for the audit table.
func (AuditLog) TableName() string { return "audit_log" }
