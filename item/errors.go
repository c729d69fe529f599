package item

import "fmt"

// ValidationError reports item data that doesn't satisfy the parent list's
// field schema. FieldID and FieldName identify the offending field.
type ValidationError struct {
	FieldID   string
	FieldName string
	Reason    string
}

func (e *ValidationError) Error() string {
	name := e.FieldName
	if name == "" {
		name = e.FieldID
	}
	return fmt.Sprintf("field %q: %s", name, e.Reason)
}
