package router

import (
	"errors"
	"strings"
)

// Administrator misconfiguration errors, surfaced as bad-request conditions.
var (
	// ErrNoPrimaryKey indicates no primary key column could be resolved.
	ErrNoPrimaryKey = errors.New("router: no resolvable primary key")
	// ErrNoColumns indicates a table has zero configured columns.
	ErrNoColumns = errors.New("router: no columns configured")
	// ErrNilConnection indicates the target connection is missing.
	ErrNilConnection = errors.New("router: nil connection")
)

// ConflictError carries a constraint violation from the target database.
type ConflictError struct {
	Message string // Engine-reported message.
	Err     error  // Underlying driver error.
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return "router: conflict: " + e.Message
}

// Unwrap exposes the underlying driver error.
func (e *ConflictError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a constraint violation.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// conflictMarkers are substrings identifying constraint violations across
// the supported engines.
var conflictMarkers = []string{
	"duplicate key",
	"unique constraint",
	"violates foreign key",
	"constraint failed",
}

// classifyTargetError wraps constraint violations as ConflictError and
// passes every other error through untouched.
func classifyTargetError(err error) error {
	if err == nil {
		return nil
	}
	message := strings.ToLower(err.Error())
	for _, marker := range conflictMarkers {
		if strings.Contains(message, marker) {
			return &ConflictError{Message: err.Error(), Err: err}
		}
	}
	return err
}
