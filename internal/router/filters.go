package router

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cmstools-dev/cmstools/internal/db"
	"github.com/cmstools-dev/cmstools/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// dateFormats are the accepted layouts for date filter values.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"02.01.2006",
	"02/01/2006",
}

// column type families derived from the declared data type string.
const (
	typeText = iota
	typeInteger
	typeDecimal
	typeDate
	typeBool
	typeOther
)

// typeFamily buckets a free-form declared data type into a coercion family.
func typeFamily(dataType string) int {
	lowered := strings.ToLower(strings.TrimSpace(dataType))
	if idx := strings.Index(lowered, "("); idx >= 0 {
		lowered = lowered[:idx]
	}
	switch lowered {
	case "int", "integer", "bigint", "smallint", "tinyint", "serial", "bigserial", "int4", "int8":
		return typeInteger
	case "decimal", "numeric", "money", "smallmoney", "float", "double", "double precision", "real":
		return typeDecimal
	case "date", "datetime", "datetime2", "smalldatetime", "timestamp", "timestamptz":
		return typeDate
	case "bit", "bool", "boolean":
		return typeBool
	case "varchar", "nvarchar", "char", "nchar", "text", "ntext", "citext", "string":
		return typeText
	default:
		return typeOther
	}
}

// BuildUserFilters coerces raw filter values into parameterized WHERE
// fragments, one per filterable column. Values that fail coercion are
// dropped silently rather than erroring, so a stray non-numeric filter on an
// integer column simply does not narrow the result.
func BuildUserFilters(target *gorm.DB, columns []models.Column, values map[string]string) ([]string, []any) {
	var fragments []string
	var params []any

	for _, column := range columns {
		if !column.IsFilter {
			continue
		}
		raw, ok := values[column.ColumnName]
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		quoted := db.QuoteIdentifier(column.ColumnName)
		switch typeFamily(column.DataType) {
		case typeInteger:
			parsed, errParse := strconv.ParseInt(raw, 10, 64)
			if errParse != nil {
				dropFilter(column.ColumnName, raw)
				continue
			}
			fragments = append(fragments, fmt.Sprintf("%s = ?", quoted))
			params = append(params, parsed)
		case typeDecimal:
			parsed, errParse := strconv.ParseFloat(normalizeDecimal(raw), 64)
			if errParse != nil {
				dropFilter(column.ColumnName, raw)
				continue
			}
			fragments = append(fragments, fmt.Sprintf("%s = ?", quoted))
			params = append(params, parsed)
		case typeDate:
			parsed, ok := parseDate(raw)
			if !ok {
				dropFilter(column.ColumnName, raw)
				continue
			}
			fragments = append(fragments, db.DateEqualExpr(target, quoted))
			params = append(params, parsed.Format("2006-01-02"))
		case typeBool:
			parsed, ok := parseBool(raw)
			if !ok {
				dropFilter(column.ColumnName, raw)
				continue
			}
			fragments = append(fragments, fmt.Sprintf("%s = ?", quoted))
			params = append(params, parsed)
		case typeText:
			fragments = append(fragments, db.CaseInsensitiveLikeExpr(target, quoted))
			params = append(params, db.NormalizeLikePattern(target, "%"+raw+"%"))
		default:
			cast := fmt.Sprintf("CAST(%s AS TEXT)", quoted)
			fragments = append(fragments, db.CaseInsensitiveLikeExpr(target, cast))
			params = append(params, db.NormalizeLikePattern(target, "%"+raw+"%"))
		}
	}

	return fragments, params
}

// CoerceWriteValue converts a raw string into a typed value suitable for
// binding on insert or update, based on the column's declared type. An empty
// string on a nullable column becomes NULL.
func CoerceWriteValue(column models.Column, raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if column.IsNullable {
			return nil, nil
		}
		return "", nil
	}

	switch typeFamily(column.DataType) {
	case typeInteger:
		parsed, errParse := strconv.ParseInt(trimmed, 10, 64)
		if errParse != nil {
			return nil, fmt.Errorf("router: column %s expects an integer: %w", column.ColumnName, errParse)
		}
		return parsed, nil
	case typeDecimal:
		parsed, errParse := strconv.ParseFloat(normalizeDecimal(trimmed), 64)
		if errParse != nil {
			return nil, fmt.Errorf("router: column %s expects a number: %w", column.ColumnName, errParse)
		}
		return parsed, nil
	case typeDate:
		parsed, ok := parseDate(trimmed)
		if !ok {
			return nil, fmt.Errorf("router: column %s expects a date", column.ColumnName)
		}
		return parsed, nil
	case typeBool:
		parsed, ok := parseBool(trimmed)
		if !ok {
			return nil, fmt.Errorf("router: column %s expects a boolean", column.ColumnName)
		}
		return parsed, nil
	default:
		return raw, nil
	}
}

// ComposeWhere joins the table row filter, the permission row filter and the
// user filter fragments into a single AND conjunction. Empty segments are
// omitted; every remaining segment is parenthesized. Returns "" when nothing
// narrows the query.
func ComposeWhere(tableFilter, permissionFilter string, userFragments []string) string {
	var segments []string
	if trimmed := strings.TrimSpace(tableFilter); trimmed != "" {
		segments = append(segments, "("+trimmed+")")
	}
	if trimmed := strings.TrimSpace(permissionFilter); trimmed != "" {
		segments = append(segments, "("+trimmed+")")
	}
	for _, fragment := range userFragments {
		segments = append(segments, "("+fragment+")")
	}
	return strings.Join(segments, " AND ")
}

// dropFilter logs a filter value the coercion layer discarded.
func dropFilter(column, raw string) {
	log.WithFields(log.Fields{"column": column, "value": raw}).Debug("dropped uncoercible filter value")
}

// normalizeDecimal reduces locale-spelled numbers to a plain dot-decimal form.
// When both separators appear the rightmost one wins as the decimal point;
// a lone comma is treated as a decimal point, repeated separators as
// thousands grouping.
func normalizeDecimal(raw string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}
	return cleaned
}

// parseDate tries the accepted date layouts in order.
func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if parsed, errParse := time.Parse(layout, raw); errParse == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// parseBool accepts the usual boolean spellings.
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
