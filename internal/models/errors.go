package models

import "errors"

// Failure classes shared by repositories, services and handlers. Callers
// wrap them with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrNotFound            = errors.New("not found")
	ErrTransactionConflict = errors.New("transaction conflict")
	ErrInternal            = errors.New("internal error")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrForbidden           = errors.New("forbidden")
)
