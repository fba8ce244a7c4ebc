package scanning

import (
	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

var _ = Describe("ParseReceiptText", func() {
	var (
		text    string
		attempt *extraction.ExtractionAttempt
	)

	JustBeforeEach(func() {
		attempt = ParseReceiptText(text, 0.82)
	})

	When("reading an English receipt", func() {
		BeforeEach(func() {
			text = `SHOPRITE LUBUMBASHI
Av. Kasavubu 12
Date: 15/03/2024
Riz 2 x 5.00 10.00
Sucre 3.00
SOUS-TOTAL 13.00
TOTAL USD 13.00
Merci`
		})

		It("should succeed with the engine confidence", func() {
			Expect(attempt.Success).To(BeTrue())
			Expect(attempt.RawConfidence).To(Equal(0.82))
			Expect(attempt.RawOCRText).To(Equal(text))
		})

		It("should take the first line as merchant", func() {
			Expect(attempt.MerchantName).To(Equal("SHOPRITE LUBUMBASHI"))
		})

		It("should read the date and currency", func() {
			Expect(attempt.TransactionDate).To(Equal("2024-03-15"))
			Expect(attempt.CurrencyCode).To(Equal("USD"))
		})

		It("should read the total and not the subtotal", func() {
			total, ok := attempt.Total()
			Expect(ok).To(BeTrue())
			Expect(total).To(Equal(13.0))
		})

		It("should read the items and skip the address", func() {
			Expect(attempt.LineItems).To(Equal([]extraction.LineItem{
				{Name: "Riz", UnitPrice: 5, Quantity: 2},
				{Name: "Sucre", UnitPrice: 3, Quantity: 1},
			}))
		})
	})

	When("reading a Congolese franc receipt", func() {
		BeforeEach(func() {
			text = `Kin Marché
Tél 0812345678
12.03.2024
Pain 1 500 FC
Lait 2 x 2 500 FC
NET A PAYER 6 500 FC`
		})

		It("should read grouped amounts", func() {
			Expect(attempt.Success).To(BeTrue())
			Expect(attempt.MerchantName).To(Equal("Kin Marché"))
			Expect(attempt.CurrencyCode).To(Equal("CDF"))
			Expect(attempt.TransactionDate).To(Equal("2024-03-12"))
			Expect(*attempt.TotalAmount).To(Equal(6500.0))
			Expect(attempt.LineItems).To(Equal([]extraction.LineItem{
				{Name: "Pain", UnitPrice: 1500, Quantity: 1},
				{Name: "Lait", UnitPrice: 2500, Quantity: 2},
			}))
		})
	})

	When("the total amount is on the next line", func() {
		BeforeEach(func() {
			text = "Carrefour\nBeurre 4,50 €\nTOTAL\n4,50 €"
		})

		It("should read it from there", func() {
			Expect(attempt.CurrencyCode).To(Equal("EUR"))
			Expect(*attempt.TotalAmount).To(Equal(4.5))
			Expect(attempt.LineItems).To(ConsistOf(extraction.LineItem{Name: "Beurre", UnitPrice: 4.5, Quantity: 1}))
		})
	})

	When("a price has too many decimals", func() {
		BeforeEach(func() {
			text = "Shoprite\nHuile 12.345\nTOTAL 12.35"
		})

		It("should keep the price as read for the validator to judge", func() {
			Expect(attempt.LineItems[0].UnitPrice).To(Equal(12.345))
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			text = "  \n \n"
		})

		It("should fail", func() {
			Expect(attempt.Success).To(BeFalse())
			Expect(attempt.ErrorMessage).To(Equal("no text recognized"))
		})
	})

	When("there are no amounts", func() {
		BeforeEach(func() {
			text = "Hello world\nfoo bar"
		})

		It("should fail and keep what was read", func() {
			Expect(attempt.Success).To(BeFalse())
			Expect(attempt.ErrorMessage).To(Equal("no amounts recognized"))
			Expect(attempt.MerchantName).To(Equal("Hello world"))
			Expect(attempt.TotalAmount).To(BeNil())
		})
	})

	When("the date is impossible", func() {
		BeforeEach(func() {
			text = "Shoprite\n31/02/2024\nTOTAL 5.00"
		})

		It("should leave the date empty", func() {
			Expect(attempt.TransactionDate).To(BeEmpty())
		})
	})
})

var _ = Describe("parseAmount", func() {
	DescribeTable("separators",
		func(input string, expected float64) {
			d, ok := parseAmount(input)
			Expect(ok).To(BeTrue())
			Expect(d.Equal(decimal.NewFromFloat(expected))).To(BeTrue(), "got %s", d.String())
		},
		Entry("space grouping", "1 500", 1500.0),
		Entry("comma grouping and dot decimal", "1,234.56", 1234.56),
		Entry("dot grouping and comma decimal", "1.234,56", 1234.56),
		Entry("comma decimal", "12,50", 12.5),
		Entry("comma thousands", "1,000", 1000.0),
		Entry("lone dot is decimal", "12.345", 12.345),
		Entry("repeated dots group thousands", "1.234.567", 1234567.0),
	)

	It("should reject text", func() {
		_, ok := parseAmount("abc")
		Expect(ok).To(BeFalse())
	})
})
