package db

import (
	"testing"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateCreatesMetadataTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"connections", "tables", "columns", "roles", "user_roles", "table_permissions", "audit_log", "operators"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	for _, column := range []string{"row_filter", "can_publish", "can_schedule", "can_archive"} {
		if !conn.Migrator().HasColumn("table_permissions", column) {
			t.Fatalf("table_permissions missing column %s", column)
		}
	}
}

func TestSeedDefaultOperator(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if errSeed := SeedDefaultOperator(conn, "admin", "changeme"); errSeed != nil {
		t.Fatalf("seed: %v", errSeed)
	}
	var operator models.Operator
	if errFind := conn.First(&operator).Error; errFind != nil {
		t.Fatalf("find operator: %v", errFind)
	}
	if !operator.IsSuperAdmin || !operator.Active {
		t.Fatalf("seeded operator should be an active super admin")
	}
	if operator.Password == "changeme" {
		t.Fatalf("seeded password must be hashed")
	}

	// Seeding again must not create a second operator.
	if errSeed := SeedDefaultOperator(conn, "other", "pw"); errSeed != nil {
		t.Fatalf("repeat seed: %v", errSeed)
	}
	var count int64
	if errCount := conn.Model(&models.Operator{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 operator, got %d", count)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	cases := map[string]string{
		"orders":        `"orders"`,
		"public.orders": `"public"."orders"`,
		`weird"name`:    `"weird""name"`,
		"Status":        `"Status"`,
	}
	for in, want := range cases {
		if got := QuoteIdentifier(in); got != want {
			t.Fatalf("QuoteIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}
