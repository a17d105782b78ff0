package models

import "time"

// Column describes one column of a managed table.
type Column struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TableID uint64 `gorm:"not null;index"` // Owning table.

	ColumnName  string `gorm:"type:text;not null"` // Physical column name.
	DisplayName string `gorm:"type:text"`          // Label shown to operators.
	DataType    string `gorm:"type:text"`          // Declared type string, e.g. "varchar(100)".

	IsNullable bool `gorm:"not null;default:true"`  // Whether NULL is accepted.
	IsPrimary  bool `gorm:"not null;default:false"` // Primary key marker.
	IsList     bool `gorm:"not null;default:true"`  // Shown in grid views.
	IsEditable bool `gorm:"not null;default:false"` // Accepts values on insert/update.
	IsFilter   bool `gorm:"not null;default:false"` // Exposed as a search filter.

	Width     int    `gorm:"not null;default:0"` // Display width hint.
	Format    string `gorm:"type:text"`          // Free-form; "fk:<table>:<valueCol>:<textCol>" marks a lookup.
	SortOrder int    `gorm:"not null;default:0"` // Ordering within the table.

	DefaultExpr string `gorm:"type:text"` // Symbolic default: NOW, UTC_NOW, CURRENT_USER_ID, CONST:<literal>.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Label returns the display name, falling back to the column name.
func (c *Column) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ColumnName
}
