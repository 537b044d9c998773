package store

import "errors"

// Error taxonomy surfaced to the routing layer. Access predicates never
// return these: they report plain booleans and fail closed, so callers decide
// whether a negative result means forbidden or not found.
var (
	// ErrNotFound covers both a missing row and denied access on secret-level
	// reads, so existence is not leaked.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is used where existence is already implied by the caller's
	// own request, e.g. project management by a non-admin.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict reports unique-constraint violations: duplicate slug,
	// duplicate email, duplicate key name within an environment.
	ErrConflict = errors.New("conflict")

	// ErrValidation reports malformed input such as a weak password or an
	// invite code of the wrong shape.
	ErrValidation = errors.New("validation failed")
)
