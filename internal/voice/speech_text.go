package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	fencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern   = regexp.MustCompile("`[^`]*`")
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)

	markupReplacer = strings.NewReplacer(
		"*", " ", "_", " ", "\\", " ", "/", " ", "|", " ",
		"#", " ", "~", " ", "<", " ", ">", " ",
	)
)

// SpeakableText strips markdown, links, code and emoji from a model reply so
// the synthesizer reads only words. A reply that is nothing but markup is
// returned trimmed and unchanged.
func SpeakableText(reply string) string {
	raw := strings.TrimSpace(reply)
	if raw == "" {
		return ""
	}
	raw = fencedCodePattern.ReplaceAllString(raw, " ")
	raw = inlineCodePattern.ReplaceAllString(raw, " ")
	raw = markdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = urlPattern.ReplaceAllString(raw, " ")
	raw = markupReplacer.Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	space := true
	gap := func() {
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3', unicode.IsControl(r) && !unicode.IsSpace(r):
		case unicode.IsSpace(r):
			gap()
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// emoji and symbols
		case strings.ContainsRune(".,!?:;'\"-()", r):
			b.WriteRune(r)
			space = false
		case unicode.IsPunct(r):
			gap()
		default:
			b.WriteRune(r)
			space = false
		}
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	return strings.TrimSpace(reply)
}
