// Package cleaner normalizes model output before it reaches the user.
package cleaner

import (
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)

	// A reply may start inside an open think block whose opening tag was
	// consumed by the vendor; everything up to the first closing tag is hidden.
	danglingThinkEnd = regexp.MustCompile(`(?is)^.*?</think>`)

	// An opening tag with no closing tag hides the rest of the reply.
	unclosedThink = regexp.MustCompile(`(?is)<think>.*$`)

	wholeFence = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\n(.*?)\n?```$")
	blankLines = regexp.MustCompile(`\n{3,}`)
	zeroWidth  = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
)

// Clean applies CleanResponse and then CleanThinkTags.
func Clean(s string) string {
	return CleanThinkTags(CleanResponse(s))
}

// CleanThinkTags removes <think>...</think> blocks and their contents.
// Other tag pairs, such as <thinking>, are left untouched.
func CleanThinkTags(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	if strings.Contains(strings.ToLower(s), "</think>") {
		s = danglingThinkEnd.ReplaceAllString(s, "")
	}
	s = unclosedThink.ReplaceAllString(s, "")

	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}

// CleanResponse normalizes line endings, drops zero-width characters,
// unwraps a reply that is a single fenced code block, and collapses runs of
// blank lines.
func CleanResponse(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = zeroWidth.Replace(s)
	s = strings.TrimSpace(s)

	if m := wholeFence.FindStringSubmatch(s); m != nil && !strings.Contains(m[1], "```") {
		s = m[1]
	}

	s = blankLines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}
