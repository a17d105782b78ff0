package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/db"
	"github.com/cmstools-dev/cmstools/internal/models"
	"gorm.io/gorm"
)

// Pagination bounds for grid queries.
const (
	// DefaultPageSize applies when the requested size is out of range.
	DefaultPageSize = 50
	// MaxPageSize caps a single grid page.
	MaxPageSize = 200
)

// Row is one result row keyed by column name. Its shape is determined
// entirely by the column metadata of the queried table.
type Row map[string]any

// QueryResult bundles one page of rows with the unpaginated total.
type QueryResult struct {
	Rows  []Row // The requested page, newest first.
	Total int64 // Row count across every page under the same filter.
}

// Router executes metadata-described operations against target databases.
type Router struct {
	pool *Pool // Cached target connection handles.
}

// New constructs a query router on top of a connection pool.
func New(pool *Pool) *Router {
	return &Router{pool: pool}
}

// Pool exposes the underlying connection pool.
func (r *Router) Pool() *Pool { return r.pool }

// ResolvePrimaryKey returns the primary key column name for a table:
// the explicit override first, then the first column flagged primary,
// then a column literally named "id".
func ResolvePrimaryKey(table *models.Table, columns []models.Column) (string, error) {
	if pk := strings.TrimSpace(table.PrimaryKey); pk != "" {
		return pk, nil
	}
	for _, column := range columns {
		if column.IsPrimary {
			return column.ColumnName, nil
		}
	}
	for _, column := range columns {
		if strings.EqualFold(column.ColumnName, "id") {
			return column.ColumnName, nil
		}
	}
	return "", ErrNoPrimaryKey
}

// clampPage normalizes pagination inputs.
func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// Query returns one page of rows plus the total count for a table.
func (r *Router) Query(ctx context.Context, connection *models.Connection, table *models.Table, columns []models.Column, where string, params []any, page, pageSize int) (*QueryResult, error) {
	target, errGet := r.pool.Get(connection)
	if errGet != nil {
		return nil, errGet
	}
	return r.QueryHandle(ctx, target, table, columns, where, params, page, pageSize)
}

// QueryHandle is Query running on an explicit handle, so callers holding an
// ambient transaction can extend it over the read.
func (r *Router) QueryHandle(ctx context.Context, target *gorm.DB, table *models.Table, columns []models.Column, where string, params []any, page, pageSize int) (*QueryResult, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	primaryKey, errPK := ResolvePrimaryKey(table, columns)
	if errPK != nil {
		return nil, errPK
	}
	page, pageSize = clampPage(page, pageSize)
	if strings.TrimSpace(where) == "" {
		where = "1=1"
	}

	selectList := make([]string, 0, len(columns))
	for _, column := range columns {
		selectList = append(selectList, db.QuoteIdentifier(column.ColumnName))
	}
	tableName := db.QuoteIdentifier(table.QualifiedName())

	querySQL := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY %s DESC LIMIT ? OFFSET ?",
		strings.Join(selectList, ", "), tableName, where, db.QuoteIdentifier(primaryKey),
	)
	countSQL := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE %s", tableName, where)

	result := &QueryResult{Rows: []Row{}}
	// Rows and count run inside one transaction so the total matches the page.
	errTx := target.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCount := tx.Raw(countSQL, params...).Scan(&result.Total).Error; errCount != nil {
			return errCount
		}
		var rows []map[string]any
		queryParams := append(append([]any{}, params...), pageSize, (page-1)*pageSize)
		if errRows := tx.Raw(querySQL, queryParams...).Scan(&rows).Error; errRows != nil {
			return errRows
		}
		for _, row := range rows {
			result.Rows = append(result.Rows, normalizeRow(row))
		}
		return nil
	})
	if errTx != nil {
		return nil, classifyTargetError(errTx)
	}
	return result, nil
}

// GetRow fetches a single row by primary key equality, nil when absent.
func (r *Router) GetRow(ctx context.Context, connection *models.Connection, table *models.Table, columns []models.Column, pkColumn string, pkValue any) (Row, error) {
	target, errGet := r.pool.Get(connection)
	if errGet != nil {
		return nil, errGet
	}
	return r.GetRowHandle(ctx, target, table, columns, pkColumn, pkValue)
}

// GetRowHandle is GetRow running on an explicit handle.
func (r *Router) GetRowHandle(ctx context.Context, target *gorm.DB, table *models.Table, columns []models.Column, pkColumn string, pkValue any) (Row, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	selectList := make([]string, 0, len(columns))
	for _, column := range columns {
		selectList = append(selectList, db.QuoteIdentifier(column.ColumnName))
	}
	querySQL := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? LIMIT 1",
		strings.Join(selectList, ", "),
		db.QuoteIdentifier(table.QualifiedName()),
		db.QuoteIdentifier(pkColumn),
	)

	var rows []map[string]any
	if errScan := target.WithContext(ctx).Raw(querySQL, pkValue).Scan(&rows).Error; errScan != nil {
		return nil, classifyTargetError(errScan)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return normalizeRow(rows[0]), nil
}

// UpdateRow updates the editable columns of one row by primary key and
// returns the affected row count. An empty editable list is a no-op that
// executes no SQL and reports zero rows.
func (r *Router) UpdateRow(ctx context.Context, connection *models.Connection, table *models.Table, editable []models.Column, pkColumn string, pkValue any, values map[string]any) (int64, error) {
	target, errGet := r.pool.Get(connection)
	if errGet != nil {
		return 0, errGet
	}
	return r.UpdateRowHandle(ctx, target, table, editable, pkColumn, pkValue, values)
}

// UpdateRowHandle is UpdateRow running on an explicit handle.
func (r *Router) UpdateRowHandle(ctx context.Context, target *gorm.DB, table *models.Table, editable []models.Column, pkColumn string, pkValue any, values map[string]any) (int64, error) {
	var assignments []string
	var params []any
	for _, column := range editable {
		value, ok := values[column.ColumnName]
		if !ok {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = ?", db.QuoteIdentifier(column.ColumnName)))
		params = append(params, value)
	}
	if len(assignments) == 0 {
		return 0, nil
	}

	updateSQL := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		db.QuoteIdentifier(table.QualifiedName()),
		strings.Join(assignments, ", "),
		db.QuoteIdentifier(pkColumn),
	)
	params = append(params, pkValue)

	result := target.WithContext(ctx).Exec(updateSQL, params...)
	if result.Error != nil {
		return 0, classifyTargetError(result.Error)
	}
	return result.RowsAffected, nil
}

// InsertRow inserts one row and returns the generated primary key value.
// The key comes back through RETURNING so the insert and the key read are a
// single atomic statement under concurrent inserts.
func (r *Router) InsertRow(ctx context.Context, connection *models.Connection, table *models.Table, editable []models.Column, pkColumn string, values map[string]any) (any, error) {
	target, errGet := r.pool.Get(connection)
	if errGet != nil {
		return nil, errGet
	}
	return r.InsertRowHandle(ctx, target, table, editable, pkColumn, values)
}

// InsertRowHandle is InsertRow running on an explicit handle.
func (r *Router) InsertRowHandle(ctx context.Context, target *gorm.DB, table *models.Table, editable []models.Column, pkColumn string, values map[string]any) (any, error) {
	var columnList []string
	var placeholders []string
	var params []any
	for _, column := range editable {
		value, ok := values[column.ColumnName]
		if !ok {
			continue
		}
		columnList = append(columnList, db.QuoteIdentifier(column.ColumnName))
		placeholders = append(placeholders, "?")
		params = append(params, value)
	}
	if len(columnList) == 0 {
		return nil, ErrNoColumns
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		db.QuoteIdentifier(table.QualifiedName()),
		strings.Join(columnList, ", "),
		strings.Join(placeholders, ", "),
		db.QuoteIdentifier(pkColumn),
	)

	var rows []map[string]any
	if errScan := target.WithContext(ctx).Raw(insertSQL, params...).Scan(&rows).Error; errScan != nil {
		return nil, classifyTargetError(errScan)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("router: insert returned no key for %s", table.TableName)
	}
	for _, value := range normalizeRow(rows[0]) {
		return value, nil
	}
	return nil, fmt.Errorf("router: insert returned no key for %s", table.TableName)
}

// normalizeRow converts driver byte slices into strings so rows serialize
// cleanly and compare predictably.
func normalizeRow(raw map[string]any) Row {
	row := make(Row, len(raw))
	for name, value := range raw {
		if bytes, ok := value.([]byte); ok {
			row[name] = string(bytes)
			continue
		}
		row[name] = value
	}
	return row
}
