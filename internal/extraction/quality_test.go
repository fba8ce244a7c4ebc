package extraction

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AssessTextQuality", func() {
	It("should return 0 for empty text", func() {
		Expect(AssessTextQuality("")).To(Equal(0.0))
	})

	It("should return 0 for text shorter than 10 characters", func() {
		Expect(AssessTextQuality("TOTAL 5")).To(Equal(0.0))
		Expect(AssessTextQuality("ÉPICERIE1")).To(Equal(0.0))
	})

	It("should score clean receipt text at 1", func() {
		Expect(AssessTextQuality("Shoprite Lubumbashi\nRice 10.00\nTOTAL 13.00")).To(Equal(1.0))
	})

	It("should give the currency bonus without exceeding 1", func() {
		Expect(AssessTextQuality("Shoprite Lubumbashi\nTOTAL $13.00")).To(Equal(1.0))
	})

	It("should penalize text without digits", func() {
		Expect(AssessTextQuality("Shoprite Lubumbashi merci")).To(BeNumerically("~", 0.7, 1e-9))
	})

	It("should let the currency bonus offset part of a penalty", func() {
		Expect(AssessTextQuality("Shoprite Lubumbashi USD merci")).To(BeNumerically("~", 0.8, 1e-9))
	})

	It("should penalize a high special character ratio", func() {
		Expect(AssessTextQuality("#@!% &*^~ {}[] 12")).To(BeNumerically("~", 0.7, 1e-9))
	})

	It("should penalize repeated character runs occurring more than twice", func() {
		text := "aaaaa 12 bbbbb 34 ccccc 56"
		Expect(AssessTextQuality(text)).To(BeNumerically("~", 0.8, 1e-9))
	})

	It("should tolerate two repeated runs", func() {
		text := "Caisse 00000 Rice 12.00 Ref 11111 total 12.00"
		Expect(AssessTextQuality(text)).To(Equal(1.0))
	})

	It("should penalize very long tokens", func() {
		Expect(AssessTextQuality(strings.Repeat("x", 20) + "1")).To(BeNumerically("~", 0.8, 1e-9))
	})

	It("should penalize very short tokens", func() {
		Expect(AssessTextQuality("a b c d e f 1 2 3")).To(BeNumerically("~", 0.8, 1e-9))
	})

	It("should clamp to 0", func() {
		Expect(AssessTextQuality("#### @@@@@ !!!!! ~~~~~ ^^^^^")).To(BeNumerically(">=", 0.0))
	})
})

var _ = Describe("Scorer", func() {
	var scorer *Scorer

	BeforeEach(func() {
		scorer = NewScorer(DefaultScoreWeights())
	})

	It("should add every bonus and apply text quality", func() {
		m := ValidationMetrics{
			HasMerchantName: true, HasTotal: true, HasItems: true, HasDate: true,
			ArithmeticMatches: true, PricesReasonable: true, TextQualityScore: 0.5,
		}
		Expect(scorer.Score(0.5, m)).To(BeNumerically("~", (0.5+0.32)*0.5, 1e-9))
	})

	It("should weight arithmetic highest", func() {
		w := DefaultScoreWeights()
		Expect(w.Arithmetic).To(BeNumerically(">", w.Merchant))
		Expect(w.Arithmetic).To(BeNumerically(">", w.Date))
	})

	It("should clamp to 1", func() {
		m := ValidationMetrics{HasMerchantName: true, ArithmeticMatches: true, TextQualityScore: 1}
		Expect(scorer.Score(1.0, m)).To(Equal(1.0))
	})

	It("should clamp to 0", func() {
		Expect(scorer.Score(-3, ValidationMetrics{TextQualityScore: 1})).To(Equal(0.0))
	})

	It("should be zero when text quality is zero", func() {
		m := ValidationMetrics{HasMerchantName: true, HasTotal: true, TextQualityScore: 0}
		Expect(scorer.Score(0.9, m)).To(Equal(0.0))
	})

	It("should stay within bounds for a spread of inputs", func() {
		for raw := -1.0; raw <= 2.0; raw += 0.25 {
			for q := 0.0; q <= 1.0; q += 0.25 {
				s := scorer.Score(raw, ValidationMetrics{HasItems: true, PricesReasonable: true, TextQualityScore: q})
				Expect(s).To(And(BeNumerically(">=", 0), BeNumerically("<=", 1)))
			}
		}
	})
})
