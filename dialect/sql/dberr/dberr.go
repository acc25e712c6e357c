// Package dberr classifies raw driver errors (pq.Error, modernc.org/sqlite,
// SQLSTATE-carrying drivers) into the constraint-violation categories the
// store write path uses to report a write failure as a Constraint error
// rather than a generic mutation error.
package dberr

import (
	"errors"
	"strings"
)

// errorCoder is implemented by pq.Error and similar drivers that expose a
// raw error code string.
type errorCoder interface {
	Code() string
}

// sqlStateError is implemented by drivers that expose a SQLSTATE code
// directly (pq.Error's Code also satisfies this via its String method).
type sqlStateError interface {
	SQLState() string
}

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err resulted from a unique-index
// conflict, which the store write path reports as a Constraint error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == pgUniqueViolation {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == pgUniqueViolation {
		return true
	}
	return containsAny(err.Error(), "violates unique constraint", "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err resulted from a check-constraint
// failure.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == pgCheckViolation {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == pgCheckViolation {
		return true
	}
	return containsAny(err.Error(), "violates check constraint", "CHECK constraint failed")
}

func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
