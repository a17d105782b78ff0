package metadata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupMetadataDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:metadata_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Connection{}, &models.Table{}, &models.Column{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestGetTableSkipsDisabled(t *testing.T) {
	conn := setupMetadataDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	enabled := models.Table{ConnectionID: 1, TableName: "orders", IsEnabled: true}
	disabled := models.Table{ConnectionID: 1, TableName: "legacy", IsEnabled: false}
	if errCreate := conn.Create(&enabled).Error; errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errCreate := conn.Create(&disabled).Error; errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	got, errGet := store.GetTable(ctx, enabled.ID)
	if errGet != nil {
		t.Fatalf("get table: %v", errGet)
	}
	if got == nil || got.TableName != "orders" {
		t.Fatalf("expected orders table, got %+v", got)
	}

	gone, errGet := store.GetTable(ctx, disabled.ID)
	if errGet != nil {
		t.Fatalf("get disabled table: %v", errGet)
	}
	if gone != nil {
		t.Fatalf("disabled table should resolve to nil")
	}
}

func TestGetConnectionSkipsInactive(t *testing.T) {
	conn := setupMetadataDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	inactive := models.Connection{Name: "old", Provider: models.ProviderSQLite, ConnString: ":memory:", IsActive: false}
	if errCreate := conn.Create(&inactive).Error; errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	got, errGet := store.GetConnection(ctx, inactive.ID)
	if errGet != nil {
		t.Fatalf("get connection: %v", errGet)
	}
	if got != nil {
		t.Fatalf("inactive connection should resolve to nil")
	}
	if name := store.ConnectionName(ctx, inactive.ID); name != "old" {
		t.Fatalf("ConnectionName should ignore the active flag, got %q", name)
	}
}

func TestGetColumnsListFallback(t *testing.T) {
	conn := setupMetadataDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	columns := []models.Column{
		{TableID: 7, ColumnName: "name", SortOrder: 2, IsList: false},
		{TableID: 7, ColumnName: "id", SortOrder: 1, IsList: false},
	}
	for i := range columns {
		if errCreate := conn.Create(&columns[i]).Error; errCreate != nil {
			t.Fatalf("create: %v", errCreate)
		}
	}

	// No column flagged for the grid: all columns act as the list.
	got, errGet := store.GetColumns(ctx, 7, true)
	if errGet != nil {
		t.Fatalf("get columns: %v", errGet)
	}
	if len(got) != 2 || got[0].ColumnName != "id" || got[1].ColumnName != "name" {
		t.Fatalf("unexpected fallback columns: %+v", got)
	}

	if errUpdate := conn.Model(&models.Column{}).Where("column_name = ?", "id").Update("is_list", true).Error; errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	got, errGet = store.GetColumns(ctx, 7, true)
	if errGet != nil {
		t.Fatalf("get columns: %v", errGet)
	}
	if len(got) != 1 || got[0].ColumnName != "id" {
		t.Fatalf("expected only the flagged grid column, got %+v", got)
	}
}

func TestEvaluateDefault(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.FixedZone("CET", 3600))

	value, ok := EvaluateDefault("NOW", 9, now)
	if !ok || value != any(now) {
		t.Fatalf("NOW: got %v ok=%v", value, ok)
	}
	value, ok = EvaluateDefault("UTC_NOW", 9, now)
	if !ok || value != any(now.UTC()) {
		t.Fatalf("UTC_NOW: got %v ok=%v", value, ok)
	}
	value, ok = EvaluateDefault("CURRENT_USER_ID", 9, now)
	if !ok || value != any(uint64(9)) {
		t.Fatalf("CURRENT_USER_ID: got %v ok=%v", value, ok)
	}
	value, ok = EvaluateDefault("CONST:draft", 9, now)
	if !ok || value != any("draft") {
		t.Fatalf("CONST: got %v ok=%v", value, ok)
	}
	if _, ok = EvaluateDefault("", 9, now); ok {
		t.Fatalf("empty expression must not resolve")
	}
	if _, ok = EvaluateDefault("RANDOM()", 9, now); ok {
		t.Fatalf("unknown expression must not resolve")
	}
}
