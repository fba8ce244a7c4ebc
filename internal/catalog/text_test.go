package catalog

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CleanText", func() {
	It("should fold accents and drop noise words and punctuation", func() {
		Expect(CleanText("Le Café  au Lait!")).To(Equal("cafe lait"))
		Expect(CleanText("Coca-Cola 33cl")).To(Equal("coca cola 33cl"))
	})

	It("should drop units and single characters", func() {
		Expect(CleanText("Riz 5 kg")).To(Equal("riz"))
		Expect(CleanText("Boîte de sardines")).To(Equal("sardines"))
	})

	It("should return empty text unchanged", func() {
		Expect(CleanText("")).To(BeEmpty())
	})
})

var _ = Describe("ExpandAbbreviations", func() {
	It("should expand a whole-name abbreviation", func() {
		Expect(ExpandAbbreviations("HLE PLM")).To(Equal("huile de palme"))
	})

	It("should prefer two-word abbreviations", func() {
		Expect(ExpandAbbreviations("bnn pltn 1kg")).To(Equal("banane plantain 1kg"))
	})

	It("should expand single words and keep the rest", func() {
		Expect(ExpandAbbreviations("Tom fraiche")).To(Equal("tomate fraiche"))
	})
})

var _ = Describe("Similarity", func() {
	It("should be 1 for identical text", func() {
		Expect(Similarity("lait", "lait")).To(Equal(1.0))
	})

	It("should be 0 when either side is empty", func() {
		Expect(EditSimilarity("", "lait")).To(Equal(0.0))
		Expect(JaccardSimilarity("lait", "")).To(Equal(0.0))
	})

	It("should ignore word order in the jaccard part", func() {
		Expect(JaccardSimilarity("riz blanc", "blanc riz")).To(Equal(1.0))
	})

	It("should weight edit distance and word overlap", func() {
		// one edit in 16 runes, one of three distinct words shared
		Expect(Similarity("banane plantains", "banane plantain")).To(BeNumerically("~", 0.6*15/16+0.4/3, 1e-9))
	})
})
