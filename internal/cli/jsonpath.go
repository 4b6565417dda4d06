package cli

import "github.com/tidwall/gjson"

// extractJSONPath extracts a value from JSON using gjson syntax.
//
// Behavior:
//   - Empty path returns the original string unchanged
//   - Path not found returns empty string (not an error)
//   - Array/object results are returned as JSON strings
//   - Scalar results are returned as strings
func extractJSONPath(jsonStr, path string) string {
	if path == "" {
		return jsonStr
	}

	result := gjson.Get(jsonStr, path)
	if !result.Exists() {
		return ""
	}

	if result.IsArray() || result.IsObject() {
		return result.Raw
	}

	return result.String()
}
