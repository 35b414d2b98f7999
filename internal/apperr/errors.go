// Package apperr holds the error taxonomy shared by the store, the services and the handlers.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound marks an unknown id, slug or username.
	ErrNotFound = errors.New("not found")
	// ErrPermission marks an attempt to act on another user's resource.
	ErrPermission = errors.New("permission denied")
	// ErrConflict marks a uniqueness violation (taken username, email or slug).
	ErrConflict = errors.New("conflict")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records another field message, keeping the first one per field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
