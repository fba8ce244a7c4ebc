package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/receipt-pipeline/internal/correction"
	"github.com/zombor/receipt-pipeline/internal/extraction"
)

const unknownMerchant = "Unknown Merchant"

// cloudReceipt is the JSON shape the cloud prompt asks for
type cloudReceipt struct {
	MerchantName    string      `json:"merchant_name"`
	TransactionDate string      `json:"transaction_date"`
	CurrencyCode    string      `json:"currency_code"`
	TotalAmount     *float64    `json:"total_amount"`
	Items           []cloudItem `json:"items"`
}

type cloudItem struct {
	Name           string   `json:"name"`
	NormalizedName string   `json:"normalized_name"`
	UnitPrice      *float64 `json:"unit_price"`
	Quantity       *float64 `json:"quantity"`
}

// parseReceiptJSON parses a model answer, tolerating markdown fences and
// chatter around the JSON object.
func parseReceiptJSON(text string) (*cloudReceipt, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data cloudReceipt
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.MerchantName = strings.TrimSpace(data.MerchantName)
	if data.MerchantName == "" {
		data.MerchantName = unknownMerchant
	}
	data.CurrencyCode = strings.ToUpper(strings.TrimSpace(data.CurrencyCode))
	data.TransactionDate = normalizeDate(data.TransactionDate)

	return &data, nil
}

// normalizeDate converts common date layouts to YYYY-MM-DD. Unreadable dates
// are dropped rather than guessed.
func normalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
		"02-01-2006",
		"02.01.2006",
	}
	for _, layout := range layouts {
		if d, err := time.Parse(layout, date); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

// toResult builds the cloud FinalReceipt. A receipt without any amount is
// reported as a failed extraction.
func (c *cloudReceipt) toResult(ids extraction.IDGenerator, clock extraction.TimeSource) *extraction.Result {
	items := make([]extraction.FinalItem, 0, len(c.Items))
	sum := 0.0
	for _, it := range c.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.UnitPrice == nil {
			continue
		}
		qty := 1.0
		if it.Quantity != nil && *it.Quantity > 0 {
			qty = *it.Quantity
		}
		normalized := strings.TrimSpace(it.NormalizedName)
		if normalized == "" {
			normalized = strings.ToLower(name)
		}
		items = append(items, extraction.FinalItem{
			Name:           name,
			NormalizedName: normalized,
			UnitPrice:      *it.UnitPrice,
			Quantity:       qty,
		})
		sum += *it.UnitPrice * qty
	}

	var total float64
	switch {
	case c.TotalAmount != nil:
		total = *c.TotalAmount
	case len(items) > 0:
		total = sum
	default:
		return extraction.Failed("cloud extraction found no total or items")
	}

	return extraction.Succeeded(&extraction.FinalReceipt{
		ID:                     ids.Generate(),
		MerchantName:           c.MerchantName,
		NormalizedMerchantName: correction.NormalizeMerchant(c.MerchantName),
		Items:                  items,
		CurrencyCode:           c.CurrencyCode,
		TotalAmount:            total,
		TransactionDate:        c.TransactionDate,
		ExtractionMethod:       extraction.MethodCloud,
		CreatedAt:              clock.Now(),
	})
}

// resultFromAnswer turns a raw model answer into a Result
func resultFromAnswer(answer string, ids extraction.IDGenerator, clock extraction.TimeSource) *extraction.Result {
	data, err := parseReceiptJSON(answer)
	if err != nil {
		return extraction.Failed(fmt.Sprintf("parsing receipt data: %v", err))
	}
	return data.toResult(ids, clock)
}
