// Package repository defines the identity store (MySQL) and the credential
// store (Redis). Sentinel errors let the service layer translate storage
// outcomes into the application taxonomy.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a unique key. Use
// errors.As with *ConflictError to learn which field collided.
var ErrConflict = errors.New("conflict")

// ConflictError names the unique field that collided.
type ConflictError struct {
	Field string // "username" or "email"
}

func (e *ConflictError) Error() string { return e.Field + " already exists" }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
