package correction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeMerchant", func() {
	It("should lower-case and fold accents", func() {
		Expect(NormalizeMerchant("Kin Marché")).To(Equal("kin marche"))
	})

	It("should drop punctuation and collapse spaces", func() {
		Expect(NormalizeMerchant("  SHOPRITE - Lubumbashi. ")).To(Equal("shoprite lubumbashi"))
	})

	It("should handle empty names", func() {
		Expect(NormalizeMerchant("")).To(BeEmpty())
	})
})

var _ = Describe("FoldAccents", func() {
	It("should keep ligatures", func() {
		Expect(FoldAccents("bœuf épicé")).To(Equal("bœuf epice"))
	})
})
