package models

import "time"

// TablePermission grants a role a set of capabilities on one managed table.
type TablePermission struct {
	TableID uint64 `gorm:"primaryKey;autoIncrement:false"` // Managed table.
	RoleID  uint64 `gorm:"primaryKey;autoIncrement:false"` // Granted role.

	CanView   bool `gorm:"not null;default:false"` // Browse rows.
	CanCreate bool `gorm:"not null;default:false"` // Insert rows.
	CanUpdate bool `gorm:"not null;default:false"` // Edit rows.
	CanDelete bool `gorm:"not null;default:false"` // Remove rows.

	CanPublish  bool `gorm:"not null;default:false"` // Publish workflow step.
	CanSchedule bool `gorm:"not null;default:false"` // Schedule workflow step.
	CanArchive  bool `gorm:"not null;default:false"` // Archive workflow step.

	RowFilter string `gorm:"type:text"` // Optional trusted SQL fragment narrowing visible rows.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
