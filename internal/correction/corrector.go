package correction

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// MatchKind reports how a product name was resolved against the dictionary
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchFuzzy
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

const maxFuzzyDistance = 2

var reConfusableStart = regexp.MustCompile(`\b([0158])(\pL+)`)

// Corrector normalizes OCR-read merchant and product names
type Corrector struct {
	rules       []Rule
	confusables map[rune]rune
	dictionary  map[string]string
	keys        []string
}

// NewCorrector creates a Corrector with the built-in rule table and product dictionary
func NewCorrector() *Corrector {
	return NewCorrectorWithTables(DefaultRules, confusables, DefaultProductDictionary)
}

// NewCorrectorWithTables creates a Corrector with custom tables
func NewCorrectorWithTables(rules []Rule, confusable map[rune]rune, dictionary map[string]string) *Corrector {
	keys := make([]string, 0, len(dictionary))
	for k := range dictionary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &Corrector{
		rules:       rules,
		confusables: confusable,
		dictionary:  dictionary,
		keys:        keys,
	}
}

// Correct applies the rule table, then the confusable first-character pass,
// then collapses whitespace.
func (c *Corrector) Correct(text string) string {
	if text == "" {
		return ""
	}
	for _, r := range c.rules {
		text = r.Pattern.ReplaceAllString(text, r.Replacement)
	}
	text = c.remapConfusables(text)
	return strings.Join(strings.Fields(text), " ")
}

// remapConfusables rewrites a leading digit of a word that is otherwise letters
func (c *Corrector) remapConfusables(text string) string {
	return reConfusableStart.ReplaceAllStringFunc(text, func(token string) string {
		first, size := utf8.DecodeRuneInString(token)
		letter, ok := c.confusables[first]
		if !ok {
			return token
		}
		next, _ := utf8.DecodeRuneInString(token[size:])
		if unicode.IsUpper(next) {
			letter = unicode.ToUpper(letter)
		}
		return string(letter) + token[size:]
	})
}

// CorrectProductName corrects a product name and resolves it against the
// product dictionary, exactly first and then by edit distance.
func (c *Corrector) CorrectProductName(name string) string {
	corrected, _ := c.LookupProduct(name)
	return corrected
}

// LookupProduct is CorrectProductName that also reports how the name matched
func (c *Corrector) LookupProduct(name string) (string, MatchKind) {
	corrected := c.Correct(name)
	key := strings.ToLower(corrected)
	if key == "" {
		return corrected, MatchNone
	}

	if good, ok := c.dictionary[key]; ok {
		return good, MatchExact
	}

	if good, ok := c.fuzzy(key); ok {
		return good, MatchFuzzy
	}

	return corrected, MatchNone
}

// fuzzy finds the closest dictionary key within min(2, len(key)/3) edits.
// Ties go to the first key in sorted order.
func (c *Corrector) fuzzy(input string) (string, bool) {
	best := ""
	bestDistance := -1
	for _, key := range c.keys {
		limit := min(maxFuzzyDistance, utf8.RuneCountInString(key)/3)
		if limit == 0 {
			continue
		}
		d := levenshtein.Distance(input, key, nil)
		if d > limit {
			continue
		}
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = key, d
		}
	}
	if bestDistance < 0 {
		return "", false
	}
	return c.dictionary[best], true
}
