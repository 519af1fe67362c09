package utils

import "strings"

// IsEmptyOrWhitespace checks if a string is empty or contains only whitespace
func IsEmptyOrWhitespace(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SanitizeTableName converts a string into a SQL table identifier. Names
// that sanitize to nothing fall back to DefaultJournalTable.
func SanitizeTableName(input string) string {
	if IsEmptyOrWhitespace(input) {
		return ""
	}
	name := strings.TrimSpace(input)

	name = strings.ToLower(name)

	var builder strings.Builder
	builder.Grow(len(name) + 2)

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	sanitized := strings.Trim(builder.String(), "_")
	if sanitized == "" {
		sanitized = DefaultJournalTable
	}

	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "t_" + sanitized
	}

	return sanitized
}
