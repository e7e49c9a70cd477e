// Package errs contains sentinel errors shared by repositories, services and handlers.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a user-correctable request problem (missing, oversized or non-image file).
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists indicates a unique constraint violation on a user-chosen key (username).
	ErrAlreadyExists = errors.New("already exists")

	// ErrDuplicate indicates the image hash is already present in the upload ledger.
	ErrDuplicate = errors.New("duplicate image")

	// ErrUpstream indicates the verification oracle failed or timed out.
	ErrUpstream = errors.New("verification unavailable")

	// ErrUnauthorized indicates an invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
)
