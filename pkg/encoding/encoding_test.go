package encoding

import "testing"

func TestNameToUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii", "sponza_arch", "sponza_arch"},
		{"utf8 kept", "café", "café"},
		{"cp1252 e acute", "caf\xe9", "café"},
		{"cp1252 euro", "price\x80", "price€"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NameToUTF8(tt.in); got != tt.want {
				t.Errorf("NameToUTF8(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSlashes(t *testing.T) {
	if got := NormalizeSlashes(`textures\bricks\albedo.png`); got != "textures/bricks/albedo.png" {
		t.Errorf("got %q", got)
	}
}

func TestTrimNullString(t *testing.T) {
	if got := TrimNullString([]byte("name\x00\x00")); got != "name" {
		t.Errorf("got %q, want %q", got, "name")
	}
}
