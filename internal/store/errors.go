package store

import (
	"errors"
	"fmt"
)

// Errors returned by every store implementation. The entity-specific
// not-found errors all wrap ErrNotFound.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTaskNotFound indicates that the requested analysis task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: analysis task", ErrNotFound)

	// ErrServiceNotFound indicates that no registration has the given name.
	ErrServiceNotFound = fmt.Errorf("%w: service registration", ErrNotFound)

	// ErrPaperNotFound indicates that the requested paper does not exist.
	ErrPaperNotFound = fmt.Errorf("%w: paper", ErrNotFound)
)
