package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultPrefixLength is the number of runes of each message compared.
const DefaultPrefixLength = 100

// Prefix returns the first n runes of s, lowercased.
func Prefix(s string, n int) string {
	s = strings.ToLower(s)
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Score returns 1 - lev(a, b) / max(len(a), len(b)) over runes, in [0, 1].
// Two empty strings are identical.
func Score(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	s := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	return min(max(s, 0), 1)
}
