package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIUnchanged(t *testing.T) {
	out, changed := RedactPII("turn on the kitchen lights")
	if changed {
		t.Fatalf("changed = true for %q", out)
	}
}

func TestLogText(t *testing.T) {
	if got := LogText("hello there", false); got != "<11 chars>" {
		t.Fatalf("LogText(hidden) = %q", got)
	}
	if got := LogText("call sam@example.com", true); !strings.Contains(got, "[REDACTED_EMAIL]") {
		t.Fatalf("LogText(verbatim) = %q, want redacted email", got)
	}
	long := strings.Repeat("a", 500)
	if got := LogText(long, true); len([]rune(got)) > maxLoggedRunes+3 {
		t.Fatalf("LogText(long) length = %d, want clipped", len([]rune(got)))
	}
}
