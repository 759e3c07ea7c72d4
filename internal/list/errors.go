// Package list implements the ordered want/need list: validation, gap-free
// positions, and archival of items that leave the list.
package list

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an item or archive record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a field that failed validation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
