package models

import "time"

// Table describes one manageable table or view in a target connection.
type Table struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ConnectionID uint64 `gorm:"not null;index"` // Owning connection.

	SchemaName  string `gorm:"type:text"`          // Optional schema prefix.
	TableName   string `gorm:"type:text;not null"` // Physical table or view name.
	DisplayName string `gorm:"type:text"`          // Label shown to operators.
	PrimaryKey  string `gorm:"type:text"`          // Optional primary key column override.

	IsView    bool `gorm:"not null;default:false"` // Views reject mutations.
	IsEnabled bool `gorm:"not null;default:true"`  // Disabled tables are invisible.

	RowFilter       string `gorm:"type:text"` // Trusted boolean SQL fragment applied to every query.
	CustomDetailURL string `gorm:"type:text"` // Optional external detail page.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// QualifiedName returns the schema-qualified physical name.
func (t *Table) QualifiedName() string {
	if t.SchemaName == "" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}
