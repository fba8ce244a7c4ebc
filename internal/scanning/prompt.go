package scanning

import (
	"fmt"
	"strings"
)

// receiptExtractionPrompt is shared by every cloud provider
const receiptExtractionPrompt = `You are analyzing a photographed shop receipt. Carefully read all text in the image and extract the following information:

1. **Merchant**: The shop or business name, usually the largest text at the top. Examples: "Shoprite", "Carrefour", "Kin Marché".

2. **Date**: The transaction date, converted to ISO 8601 (YYYY-MM-DD). Receipts from French-speaking countries usually write dates as DD/MM/YYYY.

3. **Currency**: The ISO 4217 currency code of the amounts, e.g. "USD", "EUR", "CDF" (for "FC"), "NGN", "ZAR".

4. **Items**: Every purchased line. For each line give the product name as printed, a short generic product name in lower case French (e.g. "riz", "huile de palme", "œuf"), the unit price and the quantity. If only a line amount is printed, use it as the unit price with quantity 1.

5. **Total**: The final amount paid, usually labeled "TOTAL", "NET A PAYER", "MONTANT" or "Amount Due". Not the subtotal.
%s
Return ONLY valid JSON in this exact format:
{
  "merchant_name": "Shop name",
  "transaction_date": "YYYY-MM-DD",
  "currency_code": "USD",
  "total_amount": 0.00,
  "items": [
    {"name": "Name as printed", "normalized_name": "generic name", "unit_price": 0.00, "quantity": 1}
  ]
}

Important:
- Amounts must be numbers (not strings) using a dot as decimal separator
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// extractionPrompt returns the prompt, with the user's city as a locale hint
func extractionPrompt(userCity string) string {
	hint := ""
	if city := strings.TrimSpace(userCity); city != "" {
		hint = fmt.Sprintf("\nThe receipt was scanned in %s. Use this to infer the currency and date format when they are ambiguous.\n", city)
	}
	return fmt.Sprintf(receiptExtractionPrompt, hint)
}
