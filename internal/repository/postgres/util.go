package postgres

import "errors"

var (
	// ErrNotInitialized means a pool operation ran before Init.
	ErrNotInitialized = errors.New("postgres: pool not initialized")
	// ErrAcquireTimeout means no connection freed up within the
	// configured acquire window.
	ErrAcquireTimeout = errors.New("postgres: connection acquire timeout")
	ErrNotFound = errors.New("postgres: not found")
)
