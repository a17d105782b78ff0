package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cmstools-dev/cmstools/internal/db"
	"github.com/cmstools-dev/cmstools/internal/metadata"
	"github.com/cmstools-dev/cmstools/internal/models"
	"gorm.io/gorm"
)

func setupAuditDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(fmt.Sprintf("file:audit_%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestLogWritesDenormalizedEntry(t *testing.T) {
	conn := setupAuditDB(t)
	connection := models.Connection{Name: "shop", Provider: models.ProviderSQLite, ConnString: "x", IsActive: true}
	if errCreate := conn.Create(&connection).Error; errCreate != nil {
		t.Fatalf("create connection: %v", errCreate)
	}
	logger := NewLogger(conn, metadata.NewStore(conn))

	logger.Log(context.Background(), Entry{
		UserID:    7,
		Username:  "editor",
		Operation: models.AuditOpUpdate,
		Table:     &models.Table{ConnectionID: connection.ID, SchemaName: "dbo", TableName: "articles"},
		PKColumn:  "id",
		PKValue:   42,
		OldValues: map[string]any{"name": "old"},
		NewValues: map[string]any{"name": "new"},
		Meta:      RequestMeta{IP: "10.0.0.1", UserAgent: "curl/8", RequestID: "req-1"},
	})

	var records []models.AuditLog
	if errFind := conn.Find(&records).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(records))
	}
	record := records[0]
	if record.ConnectionName != "shop" || record.TargetTable != "articles" || record.SchemaName != "dbo" {
		t.Fatalf("unexpected target fields: %+v", record)
	}
	if record.PrimaryKeyValue != "42" || record.Operation != models.AuditOpUpdate {
		t.Fatalf("unexpected operation fields: %+v", record)
	}
	if record.IPAddress != "10.0.0.1" || record.RequestID != "req-1" {
		t.Fatalf("unexpected request meta: %+v", record)
	}

	var oldValues map[string]any
	if errUnmarshal := json.Unmarshal(record.OldValues, &oldValues); errUnmarshal != nil {
		t.Fatalf("unmarshal old values: %v", errUnmarshal)
	}
	if oldValues["name"] != "old" {
		t.Fatalf("unexpected old snapshot: %v", oldValues)
	}
}

func TestLogStoresNullForEmptySnapshots(t *testing.T) {
	conn := setupAuditDB(t)
	logger := NewLogger(conn, metadata.NewStore(conn))

	logger.Log(context.Background(), Entry{
		UserID:    7,
		Operation: models.AuditOpCreate,
		Table:     &models.Table{ConnectionID: 99, TableName: "articles"},
		PKColumn:  "id",
		PKValue:   1,
	})

	var record models.AuditLog
	if errFirst := conn.First(&record).Error; errFirst != nil {
		t.Fatalf("first: %v", errFirst)
	}
	if len(record.OldValues) != 0 || len(record.NewValues) != 0 {
		t.Fatalf("empty snapshots must stay null, got %v / %v", record.OldValues, record.NewValues)
	}
	// Unknown connections leave the denormalized name blank.
	if record.ConnectionName != "" {
		t.Fatalf("expected blank connection name, got %q", record.ConnectionName)
	}
}

func TestLogSwallowsWriteFailures(t *testing.T) {
	conn := setupAuditDB(t)
	logger := NewLogger(conn, metadata.NewStore(conn))
	if errExec := conn.Exec("DROP TABLE audit_log").Error; errExec != nil {
		t.Fatalf("drop: %v", errExec)
	}

	// Must not panic or surface the failure.
	logger.Log(context.Background(), Entry{
		UserID:    1,
		Operation: models.AuditOpCreate,
		Table:     &models.Table{TableName: "articles"},
	})
	logger.Log(context.Background(), Entry{})
}

func TestMetaFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.9:1234"
	r.Header.Set("User-Agent", strings.Repeat("a", maxUserAgentLength+100))

	meta := MetaFromRequest(r, "req-9")
	if meta.IP != "192.168.1.9:1234" {
		t.Fatalf("expected remote addr fallback, got %q", meta.IP)
	}
	if len(meta.UserAgent) != maxUserAgentLength {
		t.Fatalf("expected truncated user agent, got %d chars", len(meta.UserAgent))
	}
	if meta.RequestID != "req-9" {
		t.Fatalf("unexpected request id: %q", meta.RequestID)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	meta = MetaFromRequest(r, "")
	if meta.IP != "203.0.113.5" {
		t.Fatalf("expected first forwarded entry, got %q", meta.IP)
	}
}
