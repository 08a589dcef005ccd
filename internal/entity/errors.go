package entity

import "errors"

// Domain errors for the entity package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, entity.ErrEntityNotFound) {
//	    // handle unknown entity
//	}
var (
	// ErrEntityNotFound is returned when an action ID has no matching entity.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrEntityExists is returned when creating an entity whose action ID is
	// already known.
	ErrEntityExists = errors.New("entity: already exists")

	// ErrInvalidEntity is returned when entity validation fails.
	ErrInvalidEntity = errors.New("entity: invalid")
)
