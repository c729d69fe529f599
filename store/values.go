package store

// Document data is schemaless and may have crossed a JSON boundary, so
// numbers arrive as int64, float64 or json.Number depending on the store
// implementation. These helpers normalize the common cases for decoders.

// Int64 converts a document field value to int64, returning 0 for missing
// or non-numeric values.
func Int64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return 0
	}
}

// Float64 converts a document field value to float64.
func Float64(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// String returns the string value of a field, or "" when absent or not a
// string.
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Bool returns the bool value of a field, or false when absent or not a
// bool.
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// Map returns the nested map value of a field, or nil.
func Map(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
