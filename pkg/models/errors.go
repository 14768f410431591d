package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrInvalidInput is returned for missing or malformed required fields,
	// schema validation failures, and attachment digest mismatches. Callers
	// surface it to the client and never retry.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIntegrityViolation indicates a broken storage invariant such as a
	// version number collision or an orphaned mention. It always aborts the
	// enclosing mutation; it is never repaired in place.
	ErrIntegrityViolation = errors.New("integrity violation")
)

// isUniqueViolation reports whether err is a unique constraint violation.
// GORM only translates driver errors when the dialector opts in, so the
// PostgreSQL and SQLite message shapes are matched as a fallback.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
