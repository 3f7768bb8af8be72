package helpers

import (
	"strings"
	"unicode"
)

// Slugify converts free text into a URL-safe lowercase-hyphenated slug.
// Runs of non-alphanumeric characters collapse into a single hyphen and
// leading/trailing hyphens are trimmed.
func Slugify(input string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(input) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CollapseWhitespace normalises all whitespace runs to single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
