package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrCycleRejected is the only hard failure on the mutation path: the
	// requested edge would make a node its own transitive ancestor.
	ErrCycleRejected = errors.New("hierarchy cycle rejected")
)
