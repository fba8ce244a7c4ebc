package extraction

// Thresholds holds the tuning values used by validation and the accept gate
type Thresholds struct {
	// AcceptConfidence is the minimum scored confidence for a local result to be accepted
	AcceptConfidence float64
	// MinTextQuality is the minimum OCR text quality for a local result to be accepted
	MinTextQuality float64
	// QualityIssueBelow records a text quality issue under this score
	QualityIssueBelow float64
	// ArithmeticToleranceRatio and ArithmeticToleranceFloor give the allowed
	// gap between the item sum and the total: max(floor, total*ratio)
	ArithmeticToleranceRatio float64
	ArithmeticToleranceFloor float64
	MaxItemPrice             float64
	MaxPriceDecimals         int32
	MinMerchantLength        int
}

// DefaultThresholds returns the production tuning
func DefaultThresholds() Thresholds {
	return Thresholds{
		AcceptConfidence:         0.80,
		MinTextQuality:           0.70,
		QualityIssueBelow:        0.50,
		ArithmeticToleranceRatio: 0.01,
		ArithmeticToleranceFloor: 1.0,
		MaxItemPrice:             1_000_000,
		MaxPriceDecimals:         2,
		MinMerchantLength:        2,
	}
}

// ScoreWeights are the confidence bonuses added per satisfied metric
type ScoreWeights struct {
	Merchant   float64
	Total      float64
	Items      float64
	Date       float64
	Arithmetic float64
	Prices     float64
}

// DefaultScoreWeights returns the production bonuses. Arithmetic carries the
// largest weight.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Merchant:   0.05,
		Total:      0.05,
		Items:      0.05,
		Date:       0.02,
		Arithmetic: 0.10,
		Prices:     0.05,
	}
}
