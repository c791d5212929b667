package policy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card before phone, otherwise card numbers match the phone pattern.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

const maxLoggedRunes = 160

// LogText renders a transcript or reply for the log. Unless verbatim is set
// only the length is shown; verbatim text is still PII-redacted and clipped.
func LogText(text string, verbatim bool) string {
	if !verbatim {
		return fmt.Sprintf("<%d chars>", utf8.RuneCountInString(text))
	}
	out, _ := RedactPII(strings.TrimSpace(text))
	if utf8.RuneCountInString(out) > maxLoggedRunes {
		runes := []rune(out)
		out = string(runes[:maxLoggedRunes]) + "…"
	}
	return fmt.Sprintf("%q", out)
}
