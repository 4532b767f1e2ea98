package catalog

import (
	"errors"
	"time"
)

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Code        string
	Name        string
	Description string
}

// Role represents a named bundle of permissions assignable to an actor.
type Role struct {
	ID          int64
	Code        string
	Name        string
	Description string
	Permissions []Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrConflict indicates a uniqueness violation (duplicate code).
	ErrConflict = errors.New("catalog: conflict")
	// ErrInUse indicates the record is still referenced and cannot be deleted.
	ErrInUse = errors.New("catalog: in use")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("catalog: invalid input")
)
