package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a record or year is not found.
	ErrNotFound = errors.New("not found")

	// ErrYearExists is returned when adding a year that is already stored.
	ErrYearExists = errors.New("year already exists")
)
