package store

import "testing"

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"Žluťoučký  Kůň", "zlutoucky kun"},
		{"  Alice   B  ", "alice b"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeDisplayName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeDisplayName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestExternalIDKey(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		attrs    map[string]string
		expected string
	}{
		{"external id wins", "Alice", map[string]string{"external_id": "S100"}, "ext:S100"},
		{"whitespace trimmed", "Alice", map[string]string{"external_id": " S100 "}, "ext:S100"},
		{"fallback to name", "Jiří Novák", map[string]string{"class": "10A"}, "name:jiri novak"},
		{"empty external id falls back", "Alice", map[string]string{"external_id": ""}, "name:alice"},
		{"nil attrs", "Alice", nil, "name:alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExternalIDKey(tt.display, tt.attrs); got != tt.expected {
				t.Errorf("ExternalIDKey(%q, %v) = %q, want %q", tt.display, tt.attrs, got, tt.expected)
			}
		})
	}
}

func TestDisplayNameKey_IgnoresAttributes(t *testing.T) {
	a := DisplayNameKey("Alice", map[string]string{"external_id": "S1"})
	b := DisplayNameKey("alice", map[string]string{"external_id": "S2"})
	if a != b {
		t.Errorf("name policy must ignore attributes: %q vs %q", a, b)
	}
}
