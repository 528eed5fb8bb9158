package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrSeatConflict is returned when a seat reservation loses the race
	// against another active booking on the same trip.
	ErrSeatConflict = errors.New("seat already reserved")
)
