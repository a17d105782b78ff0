package lookup

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/db"
	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/cmstools-dev/cmstools/internal/router"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxOptions caps the rows a single lookup query may return.
const MaxOptions = 2000

// formatPrefix marks a column format string as a foreign-key lookup.
const formatPrefix = "fk:"

// Columns of the referenced table that change lookup behavior.
const (
	parentColumn = "parent_id"  // Marks a self-referencing category tree.
	sortColumn   = "sort_order" // Preferred flat ordering when present.
)

// safeIdentifier gates every identifier taken from a format string. Anything
// else is rejected to keep metadata out of the SQL injection surface.
var safeIdentifier = regexp.MustCompile(`^[A-Za-z0-9_.\[\]]+$`)

// Format is a parsed fk:<table>:<valueColumn>:<textColumn> column format.
type Format struct {
	Table       string
	ValueColumn string
	TextColumn  string
}

// ParseFormat parses a column format string into a lookup Format. It returns
// false for non-lookup formats and for lookup formats whose identifiers fail
// the safe-identifier gate.
func ParseFormat(format string) (Format, bool) {
	trimmed := strings.TrimSpace(format)
	if !strings.HasPrefix(trimmed, formatPrefix) {
		return Format{}, false
	}
	parts := strings.Split(trimmed, ":")
	if len(parts) != 4 {
		return Format{}, false
	}
	parsed := Format{Table: parts[1], ValueColumn: parts[2], TextColumn: parts[3]}
	for _, identifier := range []string{parsed.Table, parsed.ValueColumn, parsed.TextColumn} {
		if !safeIdentifier.MatchString(identifier) {
			return Format{}, false
		}
	}
	return parsed, true
}

// CacheKey identifies one lookup list within a connection.
func (f Format) CacheKey(connectionID uint64) string {
	return fmt.Sprintf("lookup:%d:%s:%s:%s", connectionID, f.Table, f.ValueColumn, f.TextColumn)
}

// Service resolves fk-formatted columns into cached option lists.
type Service struct {
	pool  *router.Pool // Target connection handles.
	cache Cache        // TTL cache shared across requests.
}

// NewService builds a lookup service on top of a connection pool and cache.
func NewService(pool *router.Pool, cache Cache) *Service {
	return &Service{pool: pool, cache: cache}
}

// Resolve returns option lists for every column of the set whose format
// string is a valid lookup, keyed by column name. A column whose query fails
// resolves to an empty list; other columns still resolve. Resolution stops
// early when ctx is cancelled.
func (s *Service) Resolve(ctx context.Context, connection *models.Connection, columns []models.Column) map[string][]Option {
	result := make(map[string][]Option)

	for _, column := range columns {
		if ctx.Err() != nil {
			return result
		}
		format, ok := ParseFormat(column.Format)
		if !ok {
			if strings.HasPrefix(strings.TrimSpace(column.Format), formatPrefix) {
				log.WithFields(log.Fields{"column": column.ColumnName, "format": column.Format}).
					Warn("skipped lookup with unsafe format")
			}
			continue
		}

		key := format.CacheKey(connection.ID)
		if options, hit := s.cache.Get(ctx, key); hit {
			result[column.ColumnName] = options
			continue
		}

		options, errLoad := s.load(ctx, connection, format)
		if errLoad != nil {
			log.WithError(errLoad).WithFields(log.Fields{"column": column.ColumnName, "table": format.Table}).
				Warn("lookup query failed")
			result[column.ColumnName] = []Option{}
			continue
		}
		s.cache.Set(ctx, key, options)
		result[column.ColumnName] = options
	}
	return result
}

// load runs the lookup query for one format against the target database.
func (s *Service) load(ctx context.Context, connection *models.Connection, format Format) ([]Option, error) {
	target, errGet := s.pool.Get(connection)
	if errGet != nil {
		return nil, errGet
	}

	names, errNames := referencedColumns(target, format.Table)
	if errNames != nil {
		return nil, errNames
	}
	if _, tree := names[parentColumn]; tree {
		return s.loadTree(ctx, target, format)
	}
	_, hasSort := names[sortColumn]
	return s.loadFlat(ctx, target, format, hasSort)
}

// referencedColumns inspects the referenced table's column names.
func referencedColumns(target *gorm.DB, table string) (map[string]struct{}, error) {
	columnTypes, errTypes := target.Migrator().ColumnTypes(table)
	if errTypes != nil {
		return nil, fmt.Errorf("lookup: describe %s: %w", table, errTypes)
	}
	names := make(map[string]struct{}, len(columnTypes))
	for _, columnType := range columnTypes {
		names[strings.ToLower(columnType.Name())] = struct{}{}
	}
	return names, nil
}

// loadFlat returns the table's options ordered by the sort column when it
// exists, then by the text column.
func (s *Service) loadFlat(ctx context.Context, target *gorm.DB, format Format, hasSort bool) ([]Option, error) {
	order := db.QuoteIdentifier(format.TextColumn)
	if hasSort {
		order = db.QuoteIdentifier(sortColumn) + ", " + order
	}
	querySQL := fmt.Sprintf(
		`SELECT %s AS "value", %s AS "text" FROM %s ORDER BY %s LIMIT %d`,
		db.QuoteIdentifier(format.ValueColumn),
		db.QuoteIdentifier(format.TextColumn),
		db.QuoteIdentifier(format.Table),
		order,
		MaxOptions,
	)

	var rows []map[string]any
	if errScan := target.WithContext(ctx).Raw(querySQL).Scan(&rows).Error; errScan != nil {
		return nil, errScan
	}
	options := make([]Option, 0, len(rows))
	for _, row := range rows {
		options = append(options, Option{Value: renderValue(row["value"]), Text: renderValue(row["text"])})
	}
	return options, nil
}

// loadTree walks a self-referencing category table breadth-first through a
// recursive CTE, ordering by the ancestor path and indenting each label by
// its depth.
func (s *Service) loadTree(ctx context.Context, target *gorm.DB, format Format) ([]Option, error) {
	value := db.QuoteIdentifier(format.ValueColumn)
	text := db.QuoteIdentifier(format.TextColumn)
	table := db.QuoteIdentifier(format.Table)
	parent := db.QuoteIdentifier(parentColumn)

	querySQL := fmt.Sprintf(`WITH RECURSIVE lookup_tree AS (
	SELECT %[1]s AS "value", %[2]s AS "text", 0 AS "depth", CAST(%[2]s AS TEXT) AS "path"
	FROM %[3]s WHERE %[4]s IS NULL
	UNION ALL
	SELECT child.%[1]s, child.%[2]s, lookup_tree."depth" + 1,
		lookup_tree."path" || '/' || CAST(child.%[2]s AS TEXT)
	FROM %[3]s child JOIN lookup_tree ON child.%[4]s = lookup_tree."value"
)
SELECT "value", "text", "depth" FROM lookup_tree ORDER BY "path" LIMIT %[5]d`,
		value, text, table, parent, MaxOptions)

	var rows []map[string]any
	if errScan := target.WithContext(ctx).Raw(querySQL).Scan(&rows).Error; errScan != nil {
		return nil, errScan
	}
	options := make([]Option, 0, len(rows))
	for _, row := range rows {
		options = append(options, Option{
			Value: renderValue(row["value"]),
			Text:  indentLabel(renderValue(row["text"]), toInt(row["depth"])),
		})
	}
	return options, nil
}

// indentLabel prefixes a tree label with two non-breaking spaces per level.
func indentLabel(text string, depth int) string {
	if depth <= 0 {
		return text
	}
	return strings.Repeat("  ", depth) + text
}

// renderValue turns a scanned database value into its option string form.
func renderValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(typed)
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

// toInt reads the depth column across driver integer representations.
func toInt(value any) int {
	switch typed := value.(type) {
	case int64:
		return int(typed)
	case int32:
		return int(typed)
	case int:
		return typed
	case float64:
		return int(typed)
	default:
		return 0
	}
}
