package extraction

// Scorer folds a raw extractor confidence and validation metrics into a
// single score in [0,1]
type Scorer struct {
	weights ScoreWeights
}

// NewScorer creates a Scorer with the given bonuses
func NewScorer(weights ScoreWeights) *Scorer {
	return &Scorer{weights: weights}
}

// Score adds a bonus per satisfied metric, then discounts the sum by the
// text quality score.
func (s *Scorer) Score(rawConfidence float64, m ValidationMetrics) float64 {
	score := rawConfidence
	if m.HasMerchantName {
		score += s.weights.Merchant
	}
	if m.HasTotal {
		score += s.weights.Total
	}
	if m.HasItems {
		score += s.weights.Items
	}
	if m.HasDate {
		score += s.weights.Date
	}
	if m.ArithmeticMatches {
		score += s.weights.Arithmetic
	}
	if m.PricesReasonable {
		score += s.weights.Prices
	}
	score *= m.TextQualityScore
	return clamp01(score)
}
