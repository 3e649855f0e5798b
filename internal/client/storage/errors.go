package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrViewNotFound indicates that no cached snapshot exists for the query
	ErrViewNotFound = errors.New("cached view not found")
)
