package audit

import (
	"context"
	"testing"
	"time"

	"github.com/cmstools-dev/cmstools/internal/models"
	"gorm.io/gorm"
)

func seedAuditEntryAt(t *testing.T, conn *gorm.DB, createdAt time.Time) {
	t.Helper()
	entry := models.AuditLog{
		UserID:    1,
		Username:  "editor",
		Operation: models.AuditOpUpdate,
		TargetTable: "orders",
	}
	if errCreate := conn.Create(&entry).Error; errCreate != nil {
		t.Fatalf("seed audit entry: %v", errCreate)
	}
	if errBackdate := conn.Model(&models.AuditLog{}).
		Where("id = ?", entry.ID).
		Update("created_at_utc", createdAt).Error; errBackdate != nil {
		t.Fatalf("backdate audit entry: %v", errBackdate)
	}
}

func TestRetentionSweepDeletesOnlyExpiredEntries(t *testing.T) {
	conn := setupAuditDB(t)
	now := time.Now().UTC()

	seedAuditEntryAt(t, conn, now.AddDate(0, 0, -40))
	seedAuditEntryAt(t, conn, now.AddDate(0, 0, -31))
	seedAuditEntryAt(t, conn, now.AddDate(0, 0, -5))
	seedAuditEntryAt(t, conn, now)

	cleaner := NewRetentionCleaner(conn, 30, time.Hour)
	deleted := cleaner.SweepOnce(context.Background())
	if deleted != 2 {
		t.Fatalf("expected 2 deleted entries, got %d", deleted)
	}

	var remaining int64
	if errCount := conn.Model(&models.AuditLog{}).Count(&remaining).Error; errCount != nil {
		t.Fatalf("count remaining entries: %v", errCount)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", remaining)
	}
}

func TestRetentionCleanerDisabledWithoutWindow(t *testing.T) {
	conn := setupAuditDB(t)
	if cleaner := NewRetentionCleaner(conn, 0, time.Hour); cleaner != nil {
		t.Fatalf("expected nil cleaner without retention window")
	}
	if cleaner := NewRetentionCleaner(nil, 30, time.Hour); cleaner != nil {
		t.Fatalf("expected nil cleaner without database")
	}
	// Nil receivers must be safe so callers can Start unconditionally.
	var cleaner *RetentionCleaner
	cleaner.Start(context.Background())
	if deleted := cleaner.SweepOnce(context.Background()); deleted != 0 {
		t.Fatalf("expected no-op sweep on nil cleaner, got %d", deleted)
	}
}
