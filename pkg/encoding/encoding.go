// Package encoding provides text helpers for names and paths read from
// geometry sources and baked files.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// NameToUTF8 returns s unchanged when it is valid UTF-8. Otherwise s is
// assumed to be Windows-1252, which is what most legacy OBJ/MTL exporters
// emit for object and material names.
func NameToUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	result, _, err := transform.String(charmap.Windows1252.NewDecoder(), s)
	if err != nil {
		// Return as-is if decoding fails
		return s
	}
	return result
}

// NormalizeSlashes converts Windows path separators to forward slashes.
// Texture references in MTL files written on Windows frequently use them.
func NormalizeSlashes(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// TrimNullString removes trailing null bytes and converts to string.
func TrimNullString(data []byte) string {
	return string(TrimNullBytes(data))
}
