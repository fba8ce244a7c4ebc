package extraction

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// QualityAssessor scores OCR text noise in [0,1]
type QualityAssessor func(text string) float64

// Validator checks an ExtractionAttempt for completeness and internal consistency
type Validator struct {
	thresholds Thresholds
	scorer     *Scorer
	assess     QualityAssessor
}

// NewValidator creates a Validator using AssessTextQuality
func NewValidator(thresholds Thresholds, weights ScoreWeights) *Validator {
	return NewValidatorWithDeps(thresholds, NewScorer(weights), AssessTextQuality)
}

// NewValidatorWithDeps creates a Validator with a custom scorer and quality assessor
func NewValidatorWithDeps(thresholds Thresholds, scorer *Scorer, assess QualityAssessor) *Validator {
	return &Validator{
		thresholds: thresholds,
		scorer:     scorer,
		assess:     assess,
	}
}

// Thresholds returns the tuning this validator was built with
func (v *Validator) Thresholds() Thresholds {
	return v.thresholds
}

// Validate runs every check against the attempt. A missing date and low text
// quality are recorded as issues; low text quality also invalidates the result.
func (v *Validator) Validate(a *ExtractionAttempt) ValidationResult {
	if a == nil {
		a = &ExtractionAttempt{}
	}

	var issues []string
	var m ValidationMetrics

	merchant := strings.TrimSpace(a.MerchantName)
	m.HasMerchantName = utf8.RuneCountInString(merchant) >= v.thresholds.MinMerchantLength
	if !m.HasMerchantName {
		issues = append(issues, "merchant name missing or too short")
	}

	total, hasTotal := a.Total()
	m.HasTotal = hasTotal && isFinite(total) && total > 0
	if !m.HasTotal {
		issues = append(issues, "total amount missing or not positive")
	}

	m.HasItems = len(a.LineItems) > 0
	if !m.HasItems {
		issues = append(issues, "no line items found")
	}

	m.HasDate = strings.TrimSpace(a.TransactionDate) != ""
	if !m.HasDate {
		issues = append(issues, "transaction date missing")
	}

	m.PricesReasonable = true
	finite := true
	for i, item := range a.LineItems {
		if !isFinite(item.UnitPrice) || !isFinite(item.Quantity) {
			finite = false
		}
		if reason := v.implausible(item); reason != "" {
			m.PricesReasonable = false
			issues = append(issues, fmt.Sprintf("item %d (%q): %s", i+1, item.Name, reason))
		}
	}

	if hasTotal && finite && isFinite(total) {
		sum, tolerance, ok := v.reconcile(a.LineItems, total)
		m.ArithmeticMatches = ok
		if !ok {
			issues = append(issues, fmt.Sprintf("items sum to %s but total is %s (tolerance %s)",
				sum.StringFixed(2), decimal.NewFromFloat(total).StringFixed(2), tolerance.StringFixed(2)))
		}
	}

	m.TextQualityScore = v.assess(a.RawOCRText)
	qualityOK := m.TextQualityScore >= v.thresholds.QualityIssueBelow
	if !qualityOK {
		issues = append(issues, fmt.Sprintf("poor OCR text quality (%.2f)", m.TextQualityScore))
	}

	valid := m.HasMerchantName && m.HasTotal && m.HasItems &&
		m.ArithmeticMatches && m.PricesReasonable && qualityOK

	return ValidationResult{
		IsValid:    valid,
		Confidence: v.scorer.Score(a.RawConfidence, m),
		Issues:     issues,
		Metrics:    m,
	}
}

// reconcile compares the item sum to the stated total within
// max(floor, total*ratio).
func (v *Validator) reconcile(items []LineItem, total float64) (decimal.Decimal, decimal.Decimal, bool) {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromFloat(item.Quantity)))
	}
	stated := decimal.NewFromFloat(total)
	tolerance := decimal.Max(
		decimal.NewFromFloat(v.thresholds.ArithmeticToleranceFloor),
		stated.Mul(decimal.NewFromFloat(v.thresholds.ArithmeticToleranceRatio)),
	)
	return sum, tolerance, sum.Sub(stated).Abs().LessThanOrEqual(tolerance)
}

// implausible returns a reason when an item's price or quantity cannot be right
func (v *Validator) implausible(item LineItem) string {
	if !isFinite(item.UnitPrice) {
		return "price is not a number"
	}
	if !isFinite(item.Quantity) || item.Quantity < 0 {
		return "quantity is invalid"
	}
	if item.UnitPrice <= 0 {
		return "price is not positive"
	}
	if item.UnitPrice > v.thresholds.MaxItemPrice {
		return "price is implausibly large"
	}
	if decimal.NewFromFloat(item.UnitPrice).Exponent() < -v.thresholds.MaxPriceDecimals {
		return fmt.Sprintf("price has more than %d decimal places", v.thresholds.MaxPriceDecimals)
	}
	return ""
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
