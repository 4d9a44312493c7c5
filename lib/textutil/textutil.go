package textutil

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

var numberRegex = regexp.MustCompile(`-?\d[\d,]*`)

// FirstInt parses the first integer found in text, ignoring thousands
// separators, e.g. "Global Rank: 12,345 (top 5%)" -> 12345.
func FirstInt(text string) (int, bool) {
	match := numberRegex.FindString(text)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// IntOr is FirstInt with a fallback for text that has no number in it,
// sources render missing values as "--" or "N/A".
func IntOr(text string, fallback int) int {
	n, ok := FirstInt(text)
	if !ok {
		return fallback
	}
	return n
}

// Suggest returns the candidate most similar to name, or "" when nothing
// is reasonably close.
func Suggest(name string, candidates []string) string {
	normalized := NormalizeName(name)
	best := ""
	var similarity float64
	for _, c := range candidates {
		sim := matchr.JaroWinkler(normalized, NormalizeName(c), false)
		if sim > similarity {
			similarity = sim
			best = c
		}
	}
	if similarity < 0.75 {
		return ""
	}
	return best
}
