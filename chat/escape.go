package chat

import "strings"

// zero-width space, breaks @everyone/@here without changing how the text reads
const zwsp = "\u200b"

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
)

var massMentionEscaper = strings.NewReplacer(
	"@everyone", "@"+zwsp+"everyone",
	"@here", "@"+zwsp+"here",
)

// Escape neutralises mass mentions and markdown formatting in user-controlled text.
func Escape(s string) string {
	return massMentionEscaper.Replace(markdownEscaper.Replace(s))
}

// TextEscaper is implemented by platforms whose chat does not render Discord markdown.
type TextEscaper interface {
	EscapeText(s string) string
}

// EscapeFor escapes s for p, defaulting to Escape.
func EscapeFor(p Platform, s string) string {
	if e, ok := p.(TextEscaper); ok {
		return e.EscapeText(s)
	}
	return Escape(s)
}
