package router

import (
	"errors"
	"testing"

	"github.com/cmstools-dev/cmstools/internal/models"
)

var (
	errTestDuplicate = errors.New(`duplicate key value violates unique constraint "idx_items_name"`)
	errTestPlain     = errors.New("connection reset by peer")
)

func TestTypeFamily(t *testing.T) {
	cases := map[string]int{
		"int":              typeInteger,
		"BIGINT":           typeInteger,
		"decimal(18,2)":    typeDecimal,
		"numeric":          typeDecimal,
		"double precision": typeDecimal,
		"date":             typeDate,
		"datetime2":        typeDate,
		"timestamptz":      typeDate,
		"bit":              typeBool,
		"boolean":          typeBool,
		"nvarchar(100)":    typeText,
		"text":             typeText,
		"uniqueidentifier": typeOther,
		"":                 typeOther,
	}
	for dataType, want := range cases {
		if got := typeFamily(dataType); got != want {
			t.Fatalf("typeFamily(%q) = %d, want %d", dataType, got, want)
		}
	}
}

func TestBuildUserFiltersCoercion(t *testing.T) {
	target := setupTargetDB(t)
	columns := []models.Column{
		{ColumnName: "name", DataType: "text", IsFilter: true},
		{ColumnName: "status", DataType: "integer", IsFilter: true},
		{ColumnName: "price", DataType: "decimal(18,2)", IsFilter: true},
		{ColumnName: "secret", DataType: "text"},
	}

	fragments, params := BuildUserFilters(target, columns, map[string]string{
		"name":   "abc",
		"status": "3",
		"price":  "1.234,56",
		"secret": "nope",
	})
	if len(fragments) != 3 || len(params) != 3 {
		t.Fatalf("expected 3 fragments, got %d (%v)", len(fragments), fragments)
	}
	// Filters follow the column order: name, status, price.
	if params[1] != int64(3) {
		t.Fatalf("expected int64(3) for status, got %T %v", params[1], params[1])
	}
	if params[2] != 1234.56 {
		t.Fatalf("expected 1234.56 for price, got %v", params[2])
	}
}

func TestBuildUserFiltersDropsUncoercible(t *testing.T) {
	target := setupTargetDB(t)
	columns := []models.Column{
		{ColumnName: "status", DataType: "integer", IsFilter: true},
		{ColumnName: "created_at", DataType: "datetime", IsFilter: true},
	}

	fragments, params := BuildUserFilters(target, columns, map[string]string{
		"status":     "not-a-number",
		"created_at": "yesterday",
	})
	if len(fragments) != 0 || len(params) != 0 {
		t.Fatalf("uncoercible values must be dropped, got %v / %v", fragments, params)
	}
}

func TestBuildUserFiltersSkipsBlankValues(t *testing.T) {
	target := setupTargetDB(t)
	columns := []models.Column{{ColumnName: "name", DataType: "text", IsFilter: true}}

	fragments, _ := BuildUserFilters(target, columns, map[string]string{"name": "   "})
	if len(fragments) != 0 {
		t.Fatalf("blank values must not filter, got %v", fragments)
	}
}

func TestComposeWhere(t *testing.T) {
	if got := ComposeWhere("", "", nil); got != "" {
		t.Fatalf("expected empty where, got %q", got)
	}
	if got := ComposeWhere("status=1", "", nil); got != "(status=1)" {
		t.Fatalf("unexpected where: %q", got)
	}
	got := ComposeWhere("status=1", "owner_id=42", []string{`"name" LIKE ?`})
	want := `(status=1) AND (owner_id=42) AND ("name" LIKE ?)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	// Whitespace-only segments are omitted.
	if got := ComposeWhere("  ", "owner_id=42", nil); got != "(owner_id=42)" {
		t.Fatalf("unexpected where: %q", got)
	}
}

func TestNormalizeDecimal(t *testing.T) {
	cases := map[string]string{
		"1234.56":    "1234.56",
		"1,234.56":   "1234.56",
		"1.234,56":   "1234.56",
		"1234,56":    "1234.56",
		"1,234,567":  "1234567",
		"1.234.567":  "1234567",
		" 12 345,6 ": "12345.6",
		"42":         "42",
		"7,5":        "7.5",
	}
	for raw, want := range cases {
		if got := normalizeDecimal(raw); got != want {
			t.Fatalf("normalizeDecimal(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCoerceWriteValue(t *testing.T) {
	value, errCoerce := CoerceWriteValue(models.Column{ColumnName: "n", DataType: "int"}, "7")
	if errCoerce != nil || value != int64(7) {
		t.Fatalf("int coercion: %v %v", value, errCoerce)
	}
	value, errCoerce = CoerceWriteValue(models.Column{ColumnName: "p", DataType: "decimal"}, "3,5")
	if errCoerce != nil || value != 3.5 {
		t.Fatalf("decimal coercion: %v %v", value, errCoerce)
	}
	if _, errCoerce = CoerceWriteValue(models.Column{ColumnName: "n", DataType: "int"}, "abc"); errCoerce == nil {
		t.Fatalf("expected error for non-numeric int")
	}

	// Empty on a nullable column means NULL; on a non-nullable one it stays empty.
	value, errCoerce = CoerceWriteValue(models.Column{ColumnName: "note", DataType: "text", IsNullable: true}, "")
	if errCoerce != nil || value != nil {
		t.Fatalf("nullable empty: %v %v", value, errCoerce)
	}
	value, errCoerce = CoerceWriteValue(models.Column{ColumnName: "note", DataType: "text"}, "")
	if errCoerce != nil || value != "" {
		t.Fatalf("non-nullable empty: %v %v", value, errCoerce)
	}

	value, errCoerce = CoerceWriteValue(models.Column{ColumnName: "ok", DataType: "bit"}, "yes")
	if errCoerce != nil || value != true {
		t.Fatalf("bool coercion: %v %v", value, errCoerce)
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, raw := range []string{"2026-03-01", "2026-03-01T10:30:00", "01.03.2026", "01/03/2026"} {
		if _, ok := parseDate(raw); !ok {
			t.Fatalf("expected %q to parse", raw)
		}
	}
	if _, ok := parseDate("March 1st"); ok {
		t.Fatalf("free-form dates must not parse")
	}
}

func TestClassifyTargetError(t *testing.T) {
	if classifyTargetError(nil) != nil {
		t.Fatalf("nil stays nil")
	}
	wrapped := classifyTargetError(errTestDuplicate)
	if !IsConflict(wrapped) {
		t.Fatalf("expected conflict, got %v", wrapped)
	}
	plain := classifyTargetError(errTestPlain)
	if IsConflict(plain) || plain != errTestPlain {
		t.Fatalf("non-conflict errors pass through, got %v", plain)
	}
}
