package repository

import "errors"

var (
	// ErrNotFound is returned by updates that matched no row. Single-row reads return nil, nil instead.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate wraps unique constraint violations
	ErrDuplicate = errors.New("record already exists")
)
