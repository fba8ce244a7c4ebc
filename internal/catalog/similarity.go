package catalog

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

const (
	editWeight    = 0.6
	jaccardWeight = 0.4
)

// EditSimilarity is 1 - distance/longer length, or 0 if either side is empty
func EditSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(longest)
}

// JaccardSimilarity compares the word sets of a and b
func JaccardSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	left := wordSet(a)
	right := wordSet(b)

	shared := 0
	for w := range left {
		if right[w] {
			shared++
		}
	}
	union := len(left) + len(right) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Similarity blends edit similarity and word overlap, 0.6 / 0.4
func Similarity(a, b string) float64 {
	return editWeight*EditSimilarity(a, b) + jaccardWeight*JaccardSimilarity(a, b)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
