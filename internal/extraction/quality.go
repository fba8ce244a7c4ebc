package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minAssessLength     = 10
	specialCharRatioMax = 0.3
	repeatRunLength     = 5
	repeatRunsAllowed   = 2
	minAvgTokenLength   = 2
	maxAvgTokenLength   = 15
)

// currencySymbols are not counted as special characters
const currencySymbols = "$€£¥₦₹"

var reCurrency = regexp.MustCompile(`(?i)[$€£¥₦₹]|\b(usd|eur|gbp|cdf|fc|zar|ngn|kes|xaf|xof)\b`)

// AssessTextQuality scores raw OCR text for noise, 0 (garbage) to 1 (clean).
// Text shorter than 10 characters always scores 0.
func AssessTextQuality(text string) float64 {
	length := utf8.RuneCountInString(text)
	if length < minAssessLength {
		return 0
	}

	score := 1.0

	if float64(countSpecial(text))/float64(length) > specialCharRatioMax {
		score -= 0.3
	}

	if countRepeatRuns(text, repeatRunLength) > repeatRunsAllowed {
		score -= 0.2
	}

	if avg := averageTokenLength(text); avg < minAvgTokenLength || avg > maxAvgTokenLength {
		score -= 0.2
	}

	if !strings.ContainsFunc(text, unicode.IsDigit) {
		score -= 0.3
	}

	if reCurrency.MatchString(text) {
		score += 0.1
	}

	return clamp01(score)
}

func countSpecial(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(currencySymbols, r) {
			continue
		}
		n++
	}
	return n
}

// countRepeatRuns counts maximal runs of at least min identical characters.
// RE2 has no backreferences, so this is a linear scan.
func countRepeatRuns(text string, min int) int {
	runs := 0
	var prev rune
	length := 0
	for i, r := range text {
		if i > 0 && r == prev {
			length++
		} else {
			if length >= min {
				runs++
			}
			length = 1
		}
		prev = r
	}
	if length >= min {
		runs++
	}
	return runs
}

func averageTokenLength(text string) float64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	total := 0
	for _, t := range tokens {
		total += utf8.RuneCountInString(t)
	}
	return float64(total) / float64(len(tokens))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
