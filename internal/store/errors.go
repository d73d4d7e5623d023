package store

import "errors"

var (
	// ErrNotFound reports a row that does not exist.
	ErrNotFound = errors.New("row not found")

	// ErrNotInserted reports a write that affected zero rows when exactly
	// one was expected. It is an integrity anomaly, not a caller mistake.
	ErrNotInserted = errors.New("row was not inserted")

	// ErrReferenceNotFound reports an ordered insert whose place-before
	// reference does not exist or belongs to a different scope.
	ErrReferenceNotFound = errors.New("ordering reference not found in scope")

	// ErrScopeNotFound reports an ordered insert into a scope whose parent
	// row does not exist.
	ErrScopeNotFound = errors.New("ordering scope not found")

	// ErrEmailTaken reports a registration against an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrDiscriminatorsExhausted reports a username whose 10000
	// discriminators are all taken.
	ErrDiscriminatorsExhausted = errors.New("all discriminators taken for username")
)
