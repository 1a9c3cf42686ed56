package audio

import (
	"regexp"
	"strings"
)

// Narration input is display text: markdown markers read badly aloud and
// emoji/symbol codepoints confuse speech engines, so both are stripped before
// the timeline is estimated.
var (
	boldRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe  = regexp.MustCompile(`__(.*?)__`)
	headingRe = regexp.MustCompile(`##`)
	codeRe    = regexp.MustCompile("`{1,3}(.*?)`{1,3}")
	symbolRe  = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{2300}-\x{23FF}]`)
)

// CleanNarrationText strips formatting markers and symbol ranges; code spans
// collapse to the word "code" rather than being spelled out.
func CleanNarrationText(text string) string {
	out := boldRe.ReplaceAllString(text, "$1")
	out = italicRe.ReplaceAllString(out, "$1")
	out = headingRe.ReplaceAllString(out, "")
	out = codeRe.ReplaceAllString(out, "code")
	out = symbolRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
