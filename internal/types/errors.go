package types

import (
	"errors"
	"fmt"
)

var (
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrExtractionEmpty   = errors.New("no title and no price found")
	ErrParseFailure      = errors.New("price text could not be parsed")
	ErrInvalidURL        = errors.New("invalid product URL")
	ErrNotFound          = errors.New("not found")
)

// AdapterFieldError is raised when a single extraction strategy fails.
// It never leaves the cascade; the field falls through to the next strategy.
type AdapterFieldError struct {
	Adapter  string
	Field    string
	Strategy string
	Err      error
}

func (e *AdapterFieldError) Error() string {
	return fmt.Sprintf("%s: %s strategy %q failed: %v", e.Adapter, e.Field, e.Strategy, e.Err)
}

func (e *AdapterFieldError) Unwrap() error {
	return e.Err
}
