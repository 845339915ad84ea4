package facilitator

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText lowercases s, folds accents and collapses everything that is
// not a letter or digit into single spaces.
func NormalizeText(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	fields := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// ContainsPhrase matches phrase as whole words inside normalized text.
func ContainsPhrase(text, phrase string) bool {
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// matchPhrases returns the phrases found in text, in policy order.
func matchPhrases(text string, phrases []string) []string {
	var hits []string
	for _, ph := range phrases {
		if ContainsPhrase(text, ph) {
			hits = append(hits, ph)
		}
	}
	return hits
}
