package llm

// Helpers for reading typed values out of the untyped options map callers
// pass to DoRequest. Each returns defaultVal when the key is missing, has the
// wrong type, or fails the optional check.

// ExtractOptionalInt reads an int option.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, check func(int) bool) int {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	n, ok := SafeInt(val)
	if !ok || (check != nil && !check(n)) {
		return defaultVal
	}
	return n
}

// ExtractOptionalString reads a string option.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, check func(string) bool) string {
	s, ok := opts[key].(string)
	if !ok || (check != nil && !check(s)) {
		return defaultVal
	}
	return s
}

// ExtractOptionalFloat64 reads a float option. Integers are accepted.
func ExtractOptionalFloat64(opts map[string]any, key string, defaultVal float64, check func(float64) bool) float64 {
	var f float64
	switch v := opts[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return defaultVal
	}
	if check != nil && !check(f) {
		return defaultVal
	}
	return f
}
