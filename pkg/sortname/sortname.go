// Package sortname derives the string used to order catalog items in listings
// from their display name.
package sortname

import (
	"strings"
)

// RemoveCharacters are stripped from the name entirely before any word
// handling happens.
var RemoveCharacters = []string{
	",",
	"&",
	"-",
	"{",
	"}",
	"'",
}

// ReplaceCharacters are substituted with a single space so that the words
// around them still split on token boundaries.
var ReplaceCharacters = []string{
	".",
	"+",
	"%",
}

// NoiseWords are dropped wherever they appear as a whole, space-delimited
// token. Leading articles are the common case, but interior tokens are
// stripped too ("national lampoon's the vacation" sorts under "vacation").
var NoiseWords = []string{
	"the",
	"a",
	"an",
}

// Transform converts a display name into its sort form: lowercase the name,
// apply the character removals and replacements in order, then drop noise
// words at exact token boundaries. The result is stable under re-application
// once no noise words remain.
func Transform(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	for _, c := range RemoveCharacters {
		name = strings.ReplaceAll(name, c, "")
	}
	for _, c := range ReplaceCharacters {
		name = strings.ReplaceAll(name, c, " ")
	}

	fields := strings.Fields(name)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if isNoiseWord(f) {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		// A name made entirely of noise words still needs to sort somewhere.
		return strings.Join(fields, " ")
	}

	return strings.Join(kept, " ")
}

func isNoiseWord(token string) bool {
	for _, w := range NoiseWords {
		if token == w {
			return true
		}
	}
	return false
}
