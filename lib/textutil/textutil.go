package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and collapses its whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// Similar reports whether the normalized Jaro-Winkler similarity of two
// names reaches threshold.
func Similar(a, b string, threshold float64) bool {
	return matchr.JaroWinkler(NormalizeName(a), NormalizeName(b), false) >= threshold
}
