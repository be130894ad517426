package audit

import "strings"

// sensitiveKeySubstrings marks a field for redaction when its lowercased key
// contains any of these substrings, at any nesting depth.
var sensitiveKeySubstrings = []string{
	"password",
	"token",
	"secret",
	"key",
	"authorization",
	"cookie",
	"set-cookie",
}

// Redact returns a deep copy of v with every sensitive field replaced by
// HiddenMarker. Maps are recursed into, as are objects inside slices; scalar
// values and slices of scalars pass through unchanged. The input is never
// modified. Callers guarantee acyclic, JSON-shaped values.
func Redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if isSensitiveKey(k) {
				out[k] = HiddenMarker
			} else {
				out[k] = Redact(inner)
			}
		}
		return out

	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Redact(inner)
		}
		return out

	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeySubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
