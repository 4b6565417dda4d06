package cli

import "testing"

func TestExtractJSONPath(t *testing.T) {
	t.Parallel()
	doc := `{"task":{"id":"3f2a","status":"todo"},"children":[{"phase_key":"qa"},{"phase_key":"impl"}]}`

	tests := []struct {
		path     string
		expected string
	}{
		{"", doc},
		{"task.status", "todo"},
		{"task.id", "3f2a"},
		{"children.#", "2"},
		{"children.0.phase_key", "qa"},
		{`children.#(phase_key=="impl").phase_key`, "impl"},
		{"children", `[{"phase_key":"qa"},{"phase_key":"impl"}]`},
		{"task", `{"id":"3f2a","status":"todo"}`},
		{"task.missing", ""},
		{"nope.nope", ""},
	}

	for _, tt := range tests {
		result := extractJSONPath(doc, tt.path)
		if result != tt.expected {
			t.Errorf("extractJSONPath(%q) = %q, want %q", tt.path, result, tt.expected)
		}
	}
}
