package item

import (
	"strings"

	"github.com/flexilist/flexisync/list"
	"github.com/flexilist/flexisync/store"
)

// ValidateData checks item data against the parent list's current field
// schema: every required field must carry a non-empty value, and present
// values must match their declared type. Keys without a matching field are
// ignored (stale keys from removed fields).
func ValidateData(fields []list.FieldSpec, data map[string]any) error {
	for _, f := range fields {
		value, present := data[f.ID]
		if !present || isEmpty(value) {
			if f.Required {
				return &ValidationError{FieldID: f.ID, FieldName: f.Name, Reason: "required"}
			}
			continue
		}
		if err := checkType(f, value); err != nil {
			return err
		}
	}
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func checkType(f list.FieldSpec, v any) error {
	switch f.Type {
	case list.TypeText:
		if _, ok := v.(string); !ok {
			return &ValidationError{FieldID: f.ID, FieldName: f.Name, Reason: "expected text"}
		}
	case list.TypeNumber:
		if _, ok := store.Float64(v); !ok {
			return &ValidationError{FieldID: f.ID, FieldName: f.Name, Reason: "expected a number"}
		}
	case list.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return &ValidationError{FieldID: f.ID, FieldName: f.Name, Reason: "expected a boolean"}
		}
	case list.TypeDate:
		// Dates travel as unix milliseconds.
		if _, ok := store.Float64(v); !ok {
			return &ValidationError{FieldID: f.ID, FieldName: f.Name, Reason: "expected a date timestamp"}
		}
	}
	return nil
}
