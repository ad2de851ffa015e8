// Package apperr holds the sentinel errors shared across layers.
// Callers match them with errors.Is; storage and engine code wrap them.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrOutOfRange    = errors.New("out of range")
	ErrPersistence   = errors.New("persistence failure")
)
