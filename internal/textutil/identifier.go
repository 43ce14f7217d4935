package textutil

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptyIdentifier   = errors.New("identifier is empty")
	ErrInvalidIdentifier = errors.New("identifier contains whitespace or control characters")
)

// NormalizeIdentifier trims surrounding whitespace and converts id to NFC.
func NormalizeIdentifier(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// ValidateIdentifier normalizes id and rejects empty values and values with
// interior whitespace or control characters.
func ValidateIdentifier(id string) (string, error) {
	normalized := NormalizeIdentifier(id)
	if normalized == "" {
		return "", ErrEmptyIdentifier
	}
	if strings.ContainsFunc(normalized, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) {
		return "", ErrInvalidIdentifier
	}
	return normalized, nil
}

// SanitizeToken converts a string to a lowercase token safe for message
// subjects and file names. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
