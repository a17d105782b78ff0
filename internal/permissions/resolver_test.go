package permissions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupPermissionDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:permissions_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Role{}, &models.UserRole{}, &models.TablePermission{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func grantRole(t *testing.T, conn *gorm.DB, userID uint64, name string, perm models.TablePermission) {
	t.Helper()
	role := models.Role{Name: name, IsActive: true}
	if errCreate := conn.Create(&role).Error; errCreate != nil {
		t.Fatalf("create role: %v", errCreate)
	}
	if errCreate := conn.Create(&models.UserRole{UserID: userID, RoleID: role.ID}).Error; errCreate != nil {
		t.Fatalf("create user role: %v", errCreate)
	}
	perm.RoleID = role.ID
	if errCreate := conn.Create(&perm).Error; errCreate != nil {
		t.Fatalf("create table permission: %v", errCreate)
	}
}

func TestEffectiveORAggregation(t *testing.T) {
	conn := setupPermissionDB(t)
	resolver := NewResolver(conn)
	ctx := context.Background()

	grantRole(t, conn, 1, "viewer", models.TablePermission{TableID: 5, CanView: true})
	grantRole(t, conn, 1, "editor", models.TablePermission{TableID: 5, CanUpdate: true})

	effective, errResolve := resolver.Effective(ctx, 1, 5, false)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if !effective.CanView || !effective.CanUpdate {
		t.Fatalf("expected view and update granted, got %+v", effective)
	}
	if effective.CanDelete || effective.CanCreate || effective.CanPublish {
		t.Fatalf("ungranted capabilities must stay false, got %+v", effective)
	}
}

func TestEffectiveFailClosedDefault(t *testing.T) {
	conn := setupPermissionDB(t)
	resolver := NewResolver(conn)

	effective, errResolve := resolver.Effective(context.Background(), 42, 5, false)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if effective != (Effective{}) {
		t.Fatalf("expected all-false permission, got %+v", effective)
	}
}

func TestEffectiveRowFilterConjunction(t *testing.T) {
	conn := setupPermissionDB(t)
	resolver := NewResolver(conn)
	ctx := context.Background()

	grantRole(t, conn, 1, "own-rows", models.TablePermission{TableID: 5, CanView: true, RowFilter: "owner_id=42"})
	grantRole(t, conn, 1, "tenant-rows", models.TablePermission{TableID: 5, CanView: true, RowFilter: "tenant_id=7"})
	grantRole(t, conn, 1, "own-rows-dup", models.TablePermission{TableID: 5, CanView: true, RowFilter: "owner_id=42"})

	effective, errResolve := resolver.Effective(ctx, 1, 5, false)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if effective.RowFilter != "(owner_id=42) AND (tenant_id=7)" {
		t.Fatalf("unexpected row filter %q", effective.RowFilter)
	}
}

func TestEffectiveIgnoresInactiveRoles(t *testing.T) {
	conn := setupPermissionDB(t)
	resolver := NewResolver(conn)
	ctx := context.Background()

	role := models.Role{Name: "dormant", IsActive: false}
	if errCreate := conn.Create(&role).Error; errCreate != nil {
		t.Fatalf("create role: %v", errCreate)
	}
	if errCreate := conn.Create(&models.UserRole{UserID: 1, RoleID: role.ID}).Error; errCreate != nil {
		t.Fatalf("create user role: %v", errCreate)
	}
	if errCreate := conn.Create(&models.TablePermission{TableID: 5, RoleID: role.ID, CanView: true}).Error; errCreate != nil {
		t.Fatalf("create table permission: %v", errCreate)
	}

	effective, errResolve := resolver.Effective(ctx, 1, 5, false)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if effective.CanView {
		t.Fatalf("inactive role must grant nothing")
	}
}

func TestEffectiveSuperAdminShortCircuit(t *testing.T) {
	conn := setupPermissionDB(t)
	resolver := NewResolver(conn)

	effective, errResolve := resolver.Effective(context.Background(), 1, 5, true)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if effective != AllGranted() {
		t.Fatalf("super admin must receive every capability, got %+v", effective)
	}
	if effective.RowFilter != "" {
		t.Fatalf("super admin must not be row-filtered")
	}
}
