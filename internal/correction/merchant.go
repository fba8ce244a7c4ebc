package correction

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks, so "Marché" becomes "Marche"
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeMerchant produces the lookup key for a merchant name: lower case,
// no accents, letters and digits only, single spaced.
func NormalizeMerchant(name string) string {
	key := FoldAccents(strings.ToLower(name))
	key = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, key)
	return strings.Join(strings.Fields(key), " ")
}
