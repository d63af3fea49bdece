package companion

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxQueryBytes bounds the size of a submitted query.
const DefaultMaxQueryBytes = 16 << 10

var (
	ErrQueryTooLarge = errors.New("companion: query exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("companion: query contains invalid UTF-8 sequences")
)

// SanitizeQuery rejects oversized or malformed queries and strips control
// characters other than newlines and tabs. The result is trimmed.
func SanitizeQuery(text string, limit int) (string, error) {
	if limit > 0 && len(text) > limit {
		// Rejected, not truncated, so the saved entry is exactly what was asked.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrQueryTooLarge, len(text), limit)
	}
	if !utf8.ValidString(text) {
		return "", ErrInvalidUTF8
	}

	clean := strings.IndexFunc(text, isUnsafeControl) < 0
	if !clean {
		var b strings.Builder
		b.Grow(len(text))
		for _, r := range text {
			if !isUnsafeControl(r) {
				b.WriteRune(r)
			}
		}
		text = b.String()
	}
	return strings.TrimSpace(text), nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
