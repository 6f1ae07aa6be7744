package filter

import (
	"regexp"
	"strings"
)

// compileLike translates a SQL LIKE pattern into an anchored regular
// expression per spec §4.5: "%" matches any run (including empty), "_"
// matches exactly one character, "\" escapes the next pattern character
// (including "\" itself), and the whole value must match.
func compileLike(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 < len(runes) {
				i++
				sb.WriteString(regexp.QuoteMeta(string(runes[i])))
			} else {
				// Trailing lone backslash: treat literally.
				sb.WriteString(regexp.QuoteMeta(`\`))
			}
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	sb.WriteString("$")
	return regexp.Compile("(?s)" + sb.String())
}

// likeCache avoids recompiling the same pattern's regexp on every
// matcher invocation; filters are typically re-evaluated many times
// against a stream of candidate objects with a fixed pattern.
var likeCache = newPatternCache()

func matchLike(value, pattern string) bool {
	re, err := likeCache.get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
