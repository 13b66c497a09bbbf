package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrUnknownField = errors.New("field not filterable on this collection")
	ErrInvalidInput = errors.New("invalid store input")
	ErrMigration    = errors.New("migration failed")
	ErrClosed       = errors.New("store is closed")
)
