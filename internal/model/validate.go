package model

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCredential   = errors.New("invalid Notion credential (expected a 'secret_' or 'ntn_' token)")
	ErrInvalidCollectionID = errors.New("invalid Notion database id (expected 32 hex characters)")
)

var palette = []string{
	"#667eea",
	"#f093fb",
	"#4facfe",
	"#43e97b",
	"#fa709a",
	"#feca57",
	"#48dbfb",
	"#ff9ff3",
	"#54a0ff",
	"#5f27cd",
}

// PaletteColor picks the accent color for the i-th source.
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}

// ValidCredential checks the shape of an integration token. It does not
// contact Notion.
func ValidCredential(key string) bool {
	if len(key) <= 20 {
		return false
	}
	return strings.HasPrefix(key, "secret_") || strings.HasPrefix(key, "ntn_")
}

// CleanCollectionID strips hyphens and lower-cases a database id, so both
// the dashed UUID form and the form copied from a Notion URL are accepted.
func CleanCollectionID(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}

// ValidCollectionID expects an already cleaned id.
func ValidCollectionID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
