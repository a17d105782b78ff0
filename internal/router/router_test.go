package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTargetDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:target_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errExec := conn.Exec(`
		CREATE TABLE items (
			id integer primary key autoincrement,
			name text not null,
			status integer not null default 1,
			price real,
			owner_id integer,
			created_at datetime
		)
	`).Error; errExec != nil {
		t.Fatalf("create items: %v", errExec)
	}
	return conn
}

func itemsTable() *models.Table {
	return &models.Table{ID: 5, ConnectionID: 1, TableName: "items", IsEnabled: true}
}

func itemsColumns() []models.Column {
	return []models.Column{
		{TableID: 5, ColumnName: "id", DataType: "integer", IsPrimary: true, IsList: true},
		{TableID: 5, ColumnName: "name", DataType: "text", IsList: true, IsEditable: true, IsFilter: true},
		{TableID: 5, ColumnName: "status", DataType: "integer", IsList: true, IsEditable: true, IsFilter: true},
		{TableID: 5, ColumnName: "price", DataType: "decimal(18,2)", IsEditable: true, IsFilter: true},
		{TableID: 5, ColumnName: "owner_id", DataType: "integer", IsEditable: true},
		{TableID: 5, ColumnName: "created_at", DataType: "datetime", IsFilter: true},
	}
}

func setupRouter(t *testing.T) (*Router, *gorm.DB, *models.Connection) {
	t.Helper()
	target := setupTargetDB(t)
	pool := NewPool()
	connection := &models.Connection{ID: 1, Name: "shop", Provider: models.ProviderSQLite, IsActive: true}
	pool.Set(connection.ID, target)
	return New(pool), target, connection
}

func seedItems(t *testing.T, target *gorm.DB, count int) {
	t.Helper()
	for i := 1; i <= count; i++ {
		if errExec := target.Exec(
			"INSERT INTO items (name, status, price, owner_id, created_at) VALUES (?, ?, ?, ?, ?)",
			fmt.Sprintf("item-%d", i), i%2, float64(i)*1.5, 42, time.Now().UTC(),
		).Error; errExec != nil {
			t.Fatalf("seed item %d: %v", i, errExec)
		}
	}
}

func TestQueryPaginationAndOrdering(t *testing.T) {
	r, target, connection := setupRouter(t)
	seedItems(t, target, 3)
	ctx := context.Background()

	result, errQuery := r.Query(ctx, connection, itemsTable(), itemsColumns(), "", nil, 1, 2)
	if errQuery != nil {
		t.Fatalf("query: %v", errQuery)
	}
	if result.Total != 3 {
		t.Fatalf("expected total 3, got %d", result.Total)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	// Newest first: ids 3 then 2.
	if fmt.Sprint(result.Rows[0]["id"]) != "3" || fmt.Sprint(result.Rows[1]["id"]) != "2" {
		t.Fatalf("unexpected ordering: %v", result.Rows)
	}

	// Last page holds the remainder.
	result, errQuery = r.Query(ctx, connection, itemsTable(), itemsColumns(), "", nil, 2, 2)
	if errQuery != nil {
		t.Fatalf("query page 2: %v", errQuery)
	}
	if len(result.Rows) != 1 || result.Total != 3 {
		t.Fatalf("expected 1 row and total 3, got %d rows total %d", len(result.Rows), result.Total)
	}

	// One page past the end is empty, not an error.
	result, errQuery = r.Query(ctx, connection, itemsTable(), itemsColumns(), "", nil, 3, 2)
	if errQuery != nil {
		t.Fatalf("query past end: %v", errQuery)
	}
	if len(result.Rows) != 0 || result.Total != 3 {
		t.Fatalf("expected empty page and total 3, got %d rows total %d", len(result.Rows), result.Total)
	}
}

func TestQueryClampsPagination(t *testing.T) {
	r, target, connection := setupRouter(t)
	seedItems(t, target, 3)

	result, errQuery := r.Query(context.Background(), connection, itemsTable(), itemsColumns(), "", nil, 0, 1000)
	if errQuery != nil {
		t.Fatalf("query: %v", errQuery)
	}
	// Out-of-range size falls back to the default, page 0 becomes page 1.
	if len(result.Rows) != 3 {
		t.Fatalf("expected all rows on clamped page 1, got %d", len(result.Rows))
	}
}

func TestQueryRowFilterConjunction(t *testing.T) {
	r, target, connection := setupRouter(t)
	seedItems(t, target, 4)
	if errExec := target.Exec("UPDATE items SET owner_id = 7 WHERE id = 4").Error; errExec != nil {
		t.Fatalf("update: %v", errExec)
	}

	where := ComposeWhere("status=1", "owner_id=42", nil)
	result, errQuery := r.Query(context.Background(), connection, itemsTable(), itemsColumns(), where, nil, 1, 50)
	if errQuery != nil {
		t.Fatalf("query: %v", errQuery)
	}
	// Rows 1 and 3 have status=1; row 3 belongs to owner 42 as well.
	for _, row := range result.Rows {
		if fmt.Sprint(row["status"]) != "1" || fmt.Sprint(row["owner_id"]) != "42" {
			t.Fatalf("row violates filters: %v", row)
		}
	}
	if result.Total != int64(len(result.Rows)) {
		t.Fatalf("count must honor the same filter: total=%d rows=%d", result.Total, len(result.Rows))
	}
	if result.Total != 2 {
		t.Fatalf("expected 2 matching rows, got %d", result.Total)
	}
}

func TestQueryWithUserFilters(t *testing.T) {
	r, target, connection := setupRouter(t)
	seedItems(t, target, 5)

	fragments, params := BuildUserFilters(target, itemsColumns(), map[string]string{"name": "item-3"})
	where := ComposeWhere("", "", fragments)
	result, errQuery := r.Query(context.Background(), connection, itemsTable(), itemsColumns(), where, params, 1, 50)
	if errQuery != nil {
		t.Fatalf("query: %v", errQuery)
	}
	if result.Total != 1 || fmt.Sprint(result.Rows[0]["name"]) != "item-3" {
		t.Fatalf("expected only item-3, got %+v", result.Rows)
	}
}

func TestQueryNoColumnsIsBadConfig(t *testing.T) {
	r, _, connection := setupRouter(t)
	if _, errQuery := r.Query(context.Background(), connection, itemsTable(), nil, "", nil, 1, 50); errQuery != ErrNoColumns {
		t.Fatalf("expected ErrNoColumns, got %v", errQuery)
	}
}

func TestGetRow(t *testing.T) {
	r, target, connection := setupRouter(t)
	seedItems(t, target, 2)
	ctx := context.Background()

	row, errGet := r.GetRow(ctx, connection, itemsTable(), itemsColumns(), "id", 2)
	if errGet != nil {
		t.Fatalf("get row: %v", errGet)
	}
	if row == nil || fmt.Sprint(row["name"]) != "item-2" {
		t.Fatalf("unexpected row: %v", row)
	}

	missing, errGet := r.GetRow(ctx, connection, itemsTable(), itemsColumns(), "id", 999)
	if errGet != nil {
		t.Fatalf("get missing row: %v", errGet)
	}
	if missing != nil {
		t.Fatalf("missing row must be nil, got %v", missing)
	}
}

func TestUpdateRow(t *testing.T) {
	r, target, connection := setupRouter(t)
	seedItems(t, target, 2)
	ctx := context.Background()

	editable := []models.Column{{ColumnName: "name", DataType: "text", IsEditable: true}}
	affected, errUpdate := r.UpdateRow(ctx, connection, itemsTable(), editable, "id", 2, map[string]any{"name": "X"})
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected row, got %d", affected)
	}

	row, errGet := r.GetRow(ctx, connection, itemsTable(), itemsColumns(), "id", 2)
	if errGet != nil {
		t.Fatalf("get row: %v", errGet)
	}
	if fmt.Sprint(row["name"]) != "X" {
		t.Fatalf("update not visible: %v", row)
	}

	// No matching row yields zero affected without error.
	affected, errUpdate = r.UpdateRow(ctx, connection, itemsTable(), editable, "id", 999, map[string]any{"name": "Y"})
	if errUpdate != nil {
		t.Fatalf("update missing: %v", errUpdate)
	}
	if affected != 0 {
		t.Fatalf("expected 0 affected rows, got %d", affected)
	}
}

func TestInsertRowReturnsGeneratedKeys(t *testing.T) {
	r, _, connection := setupRouter(t)
	ctx := context.Background()

	editable := []models.Column{
		{ColumnName: "name", DataType: "text", IsEditable: true},
		{ColumnName: "status", DataType: "integer", IsEditable: true},
	}
	seen := map[string]struct{}{}
	for i := 0; i < 25; i++ {
		key, errInsert := r.InsertRow(ctx, connection, itemsTable(), editable, "id", map[string]any{
			"name":   fmt.Sprintf("new-%d", i),
			"status": 1,
		})
		if errInsert != nil {
			t.Fatalf("insert %d: %v", i, errInsert)
		}
		rendered := fmt.Sprint(key)
		if _, dup := seen[rendered]; dup {
			t.Fatalf("duplicate generated key %s", rendered)
		}
		seen[rendered] = struct{}{}
	}

	result, errQuery := r.Query(ctx, connection, itemsTable(), itemsColumns(), "", nil, 1, 50)
	if errQuery != nil {
		t.Fatalf("query: %v", errQuery)
	}
	if result.Total != 25 {
		t.Fatalf("expected 25 rows, got %d", result.Total)
	}
}

func TestInsertConflictSurfacesAsConflictError(t *testing.T) {
	r, target, connection := setupRouter(t)
	if errExec := target.Exec("CREATE UNIQUE INDEX idx_items_name ON items (name)").Error; errExec != nil {
		t.Fatalf("create index: %v", errExec)
	}
	ctx := context.Background()

	editable := []models.Column{{ColumnName: "name", DataType: "text", IsEditable: true}}
	if _, errInsert := r.InsertRow(ctx, connection, itemsTable(), editable, "id", map[string]any{"name": "dup"}); errInsert != nil {
		t.Fatalf("first insert: %v", errInsert)
	}
	_, errInsert := r.InsertRow(ctx, connection, itemsTable(), editable, "id", map[string]any{"name": "dup"})
	if errInsert == nil {
		t.Fatalf("expected conflict")
	}
	if !IsConflict(errInsert) {
		t.Fatalf("expected ConflictError, got %v", errInsert)
	}
}

func TestResolvePrimaryKey(t *testing.T) {
	columns := []models.Column{
		{ColumnName: "code"},
		{ColumnName: "uuid", IsPrimary: true},
		{ColumnName: "id"},
	}

	pk, errPK := ResolvePrimaryKey(&models.Table{PrimaryKey: "code"}, columns)
	if errPK != nil || pk != "code" {
		t.Fatalf("explicit override: pk=%s err=%v", pk, errPK)
	}
	pk, errPK = ResolvePrimaryKey(&models.Table{}, columns)
	if errPK != nil || pk != "uuid" {
		t.Fatalf("primary flag: pk=%s err=%v", pk, errPK)
	}
	pk, errPK = ResolvePrimaryKey(&models.Table{}, []models.Column{{ColumnName: "id"}, {ColumnName: "name"}})
	if errPK != nil || pk != "id" {
		t.Fatalf("id fallback: pk=%s err=%v", pk, errPK)
	}
	if _, errPK = ResolvePrimaryKey(&models.Table{}, []models.Column{{ColumnName: "name"}}); errPK != ErrNoPrimaryKey {
		t.Fatalf("expected ErrNoPrimaryKey, got %v", errPK)
	}
}
