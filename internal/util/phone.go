package util

import (
	"net/mail"
	"strings"
)

// FormatPhone normalizes a raw phone value into the dashed US form the lead
// form produces: non-digits are stripped, anything past the tenth digit is
// discarded, and the remainder renders as DDD, DDD-DDD or DDD-DDD-DDDD.
// The function is pure and idempotent on its own output.
func FormatPhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		digits.WriteRune(r)
		if digits.Len() == 10 {
			break
		}
	}

	s := digits.String()
	switch {
	case len(s) <= 3:
		return s
	case len(s) <= 6:
		return s[:3] + "-" + s[3:]
	default:
		return s[:3] + "-" + s[3:6] + "-" + s[6:]
	}
}

// ValidEmailAddress reports whether the value parses as a bare RFC 5322
// address. Display names are rejected to keep reply-to headers predictable.
func ValidEmailAddress(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == trimmed
}
