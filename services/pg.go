package services

import (
	"errors"

	"github.com/lib/pq"
)

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
// (23505). Conditional inserts racing on unique indexes land here and are
// mapped to the conflict sentinels instead of surfacing as 500s.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// nullIfEmpty returns nil for empty strings so optional TEXT columns store
// NULL instead of "".
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
