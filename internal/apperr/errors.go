// Package apperr defines sentinel errors shared across service and
// transport layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrLocked   = errors.New("project is locked by another process")
)
