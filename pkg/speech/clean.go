package speech

import (
	"regexp"
	"strings"
)

// Language models decorate responses with markdown and links that read
// terribly aloud. These strip the decoration while keeping the words.
var (
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.*?)\*`)
	underRe  = regexp.MustCompile(`_(.*?)_`)
	codeRe   = regexp.MustCompile("`(.*?)`")
	urlRe    = regexp.MustCompile(`https?://\S+`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Clean prepares generated text for synthesis: markdown emphasis
// markers and inline code ticks are unwrapped, URLs removed, and
// whitespace collapsed. Punctuation is left alone since the engine
// uses it for phrasing.
func Clean(text string) string {
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = underRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")
	text = urlRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
