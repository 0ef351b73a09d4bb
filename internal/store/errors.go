package store

import (
	"errors"
	"fmt"
)

// Error kinds returned across the persistence boundary. Services translate
// substrate errors into these; callers match with errors.Is.
var (
	// ErrNotFound: an entity lookup failed.
	ErrNotFound = errors.New("not found")

	// ErrConflict: optimistic concurrency failure (stale move count on a
	// game, duplicate unique account/email on user creation).
	ErrConflict = errors.New("conflict")

	// ErrIllegalMove: a move failed local validation (tile not in rack,
	// bad coordinate, rejected word).
	ErrIllegalMove = errors.New("illegal move")

	// ErrIllegalState: the operation is not allowed in the current state
	// (move on a finished game, accept of a missing challenge).
	ErrIllegalState = errors.New("illegal state")

	// ErrForbidden: the user is not authorized for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrBackend wraps any underlying database error so service code never
	// sees substrate-specific exceptions.
	ErrBackend = errors.New("backend failure")

	// ErrDeadline is raised only by the nightly pipeline when its
	// scheduler deadline expires; the run resumes on the next invocation.
	ErrDeadline = errors.New("deadline exceeded")
)

// BackendErr wraps a driver error into the ErrBackend kind with context.
func BackendErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackend, op, err)
}
