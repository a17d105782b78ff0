package router

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cmstools-dev/cmstools/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockTarget(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, errMock := sqlmock.New()
	if errMock != nil {
		t.Fatalf("sqlmock: %v", errMock)
	}
	target, errOpen := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	if errOpen != nil {
		t.Fatalf("open gorm: %v", errOpen)
	}
	return target, mock
}

func TestUpdateRowHandleNoEditableColumnsExecutesNothing(t *testing.T) {
	target, mock := setupMockTarget(t)
	r := New(NewPool())

	affected, errUpdate := r.UpdateRowHandle(context.Background(), target, itemsTable(), nil, "id", 1, map[string]any{"name": "X"})
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if affected != 0 {
		t.Fatalf("expected 0 affected rows, got %d", affected)
	}

	// No values matching an editable column either.
	editable := []models.Column{{ColumnName: "name", DataType: "text", IsEditable: true}}
	affected, errUpdate = r.UpdateRowHandle(context.Background(), target, itemsTable(), editable, "id", 1, map[string]any{"status": "2"})
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if affected != 0 {
		t.Fatalf("expected 0 affected rows, got %d", affected)
	}

	// sqlmock fails on any SQL it was not told to expect, so a clean run
	// proves the no-op path never touched the target.
	if errMet := mock.ExpectationsWereMet(); errMet != nil {
		t.Fatalf("unexpected SQL: %v", errMet)
	}
}

func TestQueryHandleNoColumnsExecutesNothing(t *testing.T) {
	target, mock := setupMockTarget(t)
	r := New(NewPool())

	if _, errQuery := r.QueryHandle(context.Background(), target, itemsTable(), nil, "", nil, 1, 50); errQuery != ErrNoColumns {
		t.Fatalf("expected ErrNoColumns, got %v", errQuery)
	}
	if errMet := mock.ExpectationsWereMet(); errMet != nil {
		t.Fatalf("unexpected SQL: %v", errMet)
	}
}
