package list

import "strings"

// ValidateDefinition checks a list title and field set before any remote
// write. Every field needs a non-empty name and a known type, and the field
// set can never be empty.
func ValidateDefinition(title string, fields []FieldSpec) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleRequired
	}
	if len(fields) == 0 {
		return ErrNoFields
	}
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return &ValidationError{FieldID: f.ID, Reason: "name must not be empty"}
		}
		if !ValidType(f.Type) {
			return &ValidationError{FieldID: f.ID, Reason: "unknown field type " + string(f.Type)}
		}
	}
	return nil
}

// RemoveField returns fields with the given field removed. Removing the
// last remaining field is rejected.
func RemoveField(fields []FieldSpec, fieldID string) ([]FieldSpec, error) {
	if len(fields) <= 1 {
		return nil, ErrLastField
	}
	out := make([]FieldSpec, 0, len(fields)-1)
	found := false
	for _, f := range fields {
		if f.ID == fieldID {
			found = true
			continue
		}
		out = append(out, f)
	}
	if !found {
		return fields, nil
	}
	if len(out) == 0 {
		return nil, ErrLastField
	}
	return out, nil
}
