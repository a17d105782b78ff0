package metadata

import (
	"strings"
	"time"
)

// Symbolic default expressions recognized on columns.
const (
	// DefaultNow fills the column with the local wall-clock time.
	DefaultNow = "NOW"
	// DefaultUTCNow fills the column with the UTC wall-clock time.
	DefaultUTCNow = "UTC_NOW"
	// DefaultCurrentUserID fills the column with the acting operator ID.
	DefaultCurrentUserID = "CURRENT_USER_ID"
	// defaultConstPrefix marks a literal default value.
	defaultConstPrefix = "CONST:"
)

// EvaluateDefault resolves a symbolic default expression to a concrete value.
// The second return is false when the expression is empty or unrecognized.
func EvaluateDefault(expr string, userID uint64, now time.Time) (any, bool) {
	switch trimmed := strings.TrimSpace(expr); {
	case trimmed == "":
		return nil, false
	case trimmed == DefaultNow:
		return now, true
	case trimmed == DefaultUTCNow:
		return now.UTC(), true
	case trimmed == DefaultCurrentUserID:
		return userID, true
	case strings.HasPrefix(trimmed, defaultConstPrefix):
		return strings.TrimPrefix(trimmed, defaultConstPrefix), true
	default:
		return nil, false
	}
}
