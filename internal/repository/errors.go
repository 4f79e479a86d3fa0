package repository

import "errors"

var (
	// ErrDuplicate is returned when an insert or update hits a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleTree is returned when a folder row changed between the walk that
	// planned a tree mutation and the transaction applying it.
	ErrStaleTree = errors.New("folder tree changed concurrently")
)
