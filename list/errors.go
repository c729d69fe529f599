package list

import (
	"errors"
	"fmt"
)

var (
	// ErrListNotFound indicates the list doesn't exist.
	ErrListNotFound = errors.New("list not found")
	// ErrTitleRequired indicates a missing list title.
	ErrTitleRequired = errors.New("list title is required")
	// ErrLastField indicates an attempt to remove the only field.
	ErrLastField = errors.New("a list must keep at least one field")
	// ErrNoFields indicates a list definition with no fields at all.
	ErrNoFields = errors.New("a list must have at least one field")
)

// ValidationError reports an invalid field definition.
type ValidationError struct {
	FieldID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.FieldID, e.Reason)
}
