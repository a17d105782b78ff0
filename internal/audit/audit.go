package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/metadata"
	"github.com/cmstools-dev/cmstools/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxUserAgentLength bounds the stored user agent string.
const maxUserAgentLength = 512

// RequestMeta carries the request attributes an audit entry records. It is a
// plain data struct so the audit layer never touches the HTTP framework
// directly.
type RequestMeta struct {
	IP        string // Requester IP, forwarded-for aware.
	UserAgent string // Requester user agent, truncated.
	RequestID string // Correlation ID of the originating request.
}

// MetaFromRequest extracts audit metadata from an HTTP request. The first
// X-Forwarded-For entry wins over the transport's remote address.
func MetaFromRequest(r *http.Request, requestID string) RequestMeta {
	ip := strings.TrimSpace(r.RemoteAddr)
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	userAgent := r.UserAgent()
	if len(userAgent) > maxUserAgentLength {
		userAgent = userAgent[:maxUserAgentLength]
	}
	return RequestMeta{IP: ip, UserAgent: userAgent, RequestID: requestID}
}

// Entry describes one mutation to record.
type Entry struct {
	UserID    uint64         // Acting operator ID.
	Username  string         // Acting operator name.
	Operation string         // CREATE, UPDATE, SET_STATUS or a custom action name.
	Table     *models.Table  // Target table metadata.
	PKColumn  string         // Primary key column name.
	PKValue   any            // Primary key value, stringified for storage.
	OldValues map[string]any // Snapshot before the mutation.
	NewValues map[string]any // Snapshot after the mutation.
	Meta      RequestMeta    // Request attributes.
}

// Logger writes audit entries to the metadata database.
type Logger struct {
	db    *gorm.DB
	store *metadata.Store // Resolves connection names for denormalized storage.
}

// NewLogger builds an audit logger over the metadata database.
func NewLogger(db *gorm.DB, store *metadata.Store) *Logger {
	return &Logger{db: db, store: store}
}

// Log records one mutation. It never returns an error: a failure to audit
// must not turn an already committed business mutation into a reported
// failure, so internal errors are logged and swallowed.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if entry.Table == nil {
		log.Warn("audit entry without table metadata dropped")
		return
	}

	record := models.AuditLog{
		UserID:           entry.UserID,
		Username:         entry.Username,
		Operation:        entry.Operation,
		ConnectionName:   l.store.ConnectionName(ctx, entry.Table.ConnectionID),
		SchemaName:       entry.Table.SchemaName,
		TargetTable:      entry.Table.TableName,
		PrimaryKeyColumn: entry.PKColumn,
		PrimaryKeyValue:  renderPKValue(entry.PKValue),
		IPAddress:        entry.Meta.IP,
		UserAgent:        entry.Meta.UserAgent,
		RequestID:        entry.Meta.RequestID,
		OldValues:        marshalSnapshot(entry.OldValues),
		NewValues:        marshalSnapshot(entry.NewValues),
	}

	if errCreate := l.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		log.WithError(errCreate).WithFields(log.Fields{
			"operation": entry.Operation,
			"table":     entry.Table.TableName,
		}).Error("failed to write audit entry")
	}
}

// marshalSnapshot serializes a snapshot, keeping the column NULL when the
// snapshot is empty.
func marshalSnapshot(values map[string]any) []byte {
	if len(values) == 0 {
		return nil
	}
	payload, errMarshal := json.Marshal(values)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("failed to serialize audit snapshot")
		return nil
	}
	return payload
}

// renderPKValue stringifies a primary key value for storage.
func renderPKValue(value any) string {
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
