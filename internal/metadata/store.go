package metadata

import (
	"context"
	"errors"

	"github.com/cmstools-dev/cmstools/internal/models"
	"gorm.io/gorm"
)

// Store is a read-only accessor over the metadata database.
// Writes happen only through the schema-management handlers.
type Store struct {
	db *gorm.DB // Metadata database handle.
}

// NewStore constructs a metadata store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetTable returns an enabled table by ID, or nil when missing or disabled.
func (s *Store) GetTable(ctx context.Context, tableID uint64) (*models.Table, error) {
	var table models.Table
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND is_enabled = ?", tableID, true).
		First(&table).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &table, nil
}

// GetColumns returns the columns of a table ordered by sort order then name.
// When forList is true only grid columns are returned; if no column is
// flagged for the grid, every column acts as the fallback list.
func (s *Store) GetColumns(ctx context.Context, tableID uint64, forList bool) ([]models.Column, error) {
	var columns []models.Column
	errFind := s.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Order("sort_order ASC, column_name ASC").
		Find(&columns).Error
	if errFind != nil {
		return nil, errFind
	}
	if !forList {
		return columns, nil
	}

	listColumns := make([]models.Column, 0, len(columns))
	for _, column := range columns {
		if column.IsList {
			listColumns = append(listColumns, column)
		}
	}
	if len(listColumns) == 0 {
		return columns, nil
	}
	return listColumns, nil
}

// GetConnection returns an active connection by ID, or nil when missing or inactive.
func (s *Store) GetConnection(ctx context.Context, connectionID uint64) (*models.Connection, error) {
	var connection models.Connection
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", connectionID, true).
		First(&connection).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &connection, nil
}

// GetAllConnections returns every connection ordered by name.
func (s *Store) GetAllConnections(ctx context.Context) ([]models.Connection, error) {
	var connections []models.Connection
	errFind := s.db.WithContext(ctx).Order("name ASC").Find(&connections).Error
	if errFind != nil {
		return nil, errFind
	}
	return connections, nil
}

// GetTablesForConnection returns the tables referencing a connection.
func (s *Store) GetTablesForConnection(ctx context.Context, connectionID uint64) ([]models.Table, error) {
	var tables []models.Table
	errFind := s.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("table_name ASC").
		Find(&tables).Error
	if errFind != nil {
		return nil, errFind
	}
	return tables, nil
}

// ConnectionName returns the display name of a connection regardless of its
// active flag, for denormalized audit storage. Empty when missing.
func (s *Store) ConnectionName(ctx context.Context, connectionID uint64) string {
	var connection models.Connection
	errFind := s.db.WithContext(ctx).
		Select("name").
		Where("id = ?", connectionID).
		First(&connection).Error
	if errFind != nil {
		return ""
	}
	return connection.Name
}
