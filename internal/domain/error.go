package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConfig          = errors.New("configuration error")
	ErrUnavailable     = errors.New("backend unavailable")
)
