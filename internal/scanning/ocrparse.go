package scanning

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

const amountPattern = `\d{1,3}(?:[ ,.]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d+)?`

var (
	reAmount    = regexp.MustCompile(amountPattern)
	reQtyItem   = regexp.MustCompile(`^(.+?)\s+(\d+(?:[.,]\d+)?)\s*[xX×*@]\s*(` + amountPattern + `)(?:\s+(?:` + amountPattern + `))?$`)
	rePriceItem = regexp.MustCompile(`^(.+?)\s+(` + amountPattern + `)$`)
	reCurrency  = regexp.MustCompile(`(?i)[$€£¥₦₹]|\b(usd|eur|gbp|cdf|fc|zar|ngn|kes|xaf|xof)\b`)
	reTotalLine = regexp.MustCompile(`(?i)\b(total|montant)\b|net\s+[aà]\s+payer|amount\s+due`)
	reNotTotal  = regexp.MustCompile(`(?i)\b(sub\s*-?\s*total|subtotal|sous\s*-?\s*total|tva|tax)\b`)
	reKeyword   = regexp.MustCompile(`(?i)\b(sous|sub|subtotal|total|tva|tax|montant|amount|change|rendu|monnaie|cash|carte|card|paid|pay|merci|thank|thanks|tel|phone|date|caisse|ticket|facture|invoice|receipt)\b|esp[eè]ces|net\s+[aà]\s+payer|\bre[cç]u\b`)
	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reDMYDate   = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})\b`)
)

var currencies = []struct {
	pattern *regexp.Regexp
	code    string
}{
	{regexp.MustCompile(`(?i)\$|\busd\b`), "USD"},
	{regexp.MustCompile(`(?i)€|\beur\b`), "EUR"},
	{regexp.MustCompile(`(?i)£|\bgbp\b`), "GBP"},
	{regexp.MustCompile(`(?i)₦|\bngn\b`), "NGN"},
	{regexp.MustCompile(`(?i)\b(fc|cdf)\b`), "CDF"},
	{regexp.MustCompile(`(?i)\bzar\b`), "ZAR"},
	{regexp.MustCompile(`(?i)\bkes\b`), "KES"},
	{regexp.MustCompile(`(?i)\bxaf\b`), "XAF"},
	{regexp.MustCompile(`(?i)\bxof\b`), "XOF"},
	{regexp.MustCompile(`¥`), "JPY"},
	{regexp.MustCompile(`₹`), "INR"},
}

// ParseReceiptText turns raw OCR text into an ExtractionAttempt using line
// heuristics. The attempt fails when there is no text or no amount at all.
func ParseReceiptText(text string, confidence float64) *extraction.ExtractionAttempt {
	attempt := &extraction.ExtractionAttempt{
		RawConfidence: confidence,
		RawOCRText:    text,
		LineItems:     []extraction.LineItem{},
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		attempt.ErrorMessage = "no text recognized"
		return attempt
	}

	merchantLine := -1
	for i, line := range lines {
		if letterCount(line) >= 2 && !reKeyword.MatchString(line) {
			attempt.MerchantName = line
			merchantLine = i
			break
		}
	}

	attempt.TransactionDate = findDate(text)
	attempt.CurrencyCode = findCurrency(text)
	attempt.TotalAmount = findTotal(lines)

	for i, line := range lines {
		if i == merchantLine || reKeyword.MatchString(line) {
			continue
		}
		if item, ok := parseItemLine(line); ok {
			attempt.LineItems = append(attempt.LineItems, item)
		}
	}

	if attempt.TotalAmount == nil && len(attempt.LineItems) == 0 {
		attempt.ErrorMessage = "no amounts recognized"
		return attempt
	}

	attempt.Success = true
	return attempt
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func stripCurrency(line string) string {
	return strings.Join(strings.Fields(reCurrency.ReplaceAllString(line, " ")), " ")
}

// findTotal uses the last total line. A total label with no amount takes the
// amount from the next line.
func findTotal(lines []string) *float64 {
	var total *float64
	for i, line := range lines {
		if !reTotalLine.MatchString(line) || reNotTotal.MatchString(line) {
			continue
		}
		amounts := reAmount.FindAllString(stripCurrency(line), -1)
		if len(amounts) == 0 && i+1 < len(lines) {
			amounts = reAmount.FindAllString(stripCurrency(lines[i+1]), -1)
		}
		if len(amounts) == 0 {
			continue
		}
		if d, ok := parseAmount(amounts[len(amounts)-1]); ok {
			v, _ := d.Float64()
			total = &v
		}
	}
	return total
}

// parseItemLine reads "NAME QTY x PRICE [AMOUNT]" or "NAME PRICE". A bare
// integer price needs a currency marker on the line so addresses and phone
// numbers are not read as items.
func parseItemLine(line string) (extraction.LineItem, bool) {
	hasCurrency := reCurrency.MatchString(line)
	clean := stripCurrency(line)

	if m := reQtyItem.FindStringSubmatch(clean); m != nil {
		name := trimName(m[1])
		qty, qtyOK := parseAmount(strings.Replace(m[2], ",", ".", 1))
		price, priceOK := parseAmount(m[3])
		if letterCount(name) >= 2 && qtyOK && priceOK {
			q, _ := qty.Float64()
			p, _ := price.Float64()
			return extraction.LineItem{Name: name, UnitPrice: p, Quantity: q}, true
		}
	}

	if m := rePriceItem.FindStringSubmatch(clean); m != nil {
		if !hasCurrency && !strings.ContainsAny(m[2], ".,") {
			return extraction.LineItem{}, false
		}
		name := trimName(m[1])
		price, ok := parseAmount(m[2])
		if letterCount(name) >= 2 && ok {
			p, _ := price.Float64()
			return extraction.LineItem{Name: name, UnitPrice: p, Quantity: 1}, true
		}
	}

	return extraction.LineItem{}, false
}

func trimName(name string) string {
	return strings.TrimSpace(strings.TrimRight(name, " .:-*"))
}

// parseAmount reads an amount with either decimal separator. With both
// separators the last one is the decimal point. A lone comma followed by
// exactly three digits groups thousands; a lone dot is always decimal.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(s, " ", "")
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// findDate returns the first valid date in the text as YYYY-MM-DD
func findDate(text string) string {
	if m := reISODate.FindStringSubmatch(text); m != nil {
		if d, ok := isoDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	for _, m := range reDMYDate.FindAllStringSubmatch(text, -1) {
		if d, ok := isoDate(m[3], m[2], m[1]); ok {
			return d
		}
	}
	return ""
}

func isoDate(year, month, day string) (string, bool) {
	d, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", year, month, day))
	if err != nil {
		return "", false
	}
	return d.Format("2006-01-02"), true
}

func findCurrency(text string) string {
	for _, c := range currencies {
		if c.pattern.MatchString(text) {
			return c.code
		}
	}
	return ""
}
