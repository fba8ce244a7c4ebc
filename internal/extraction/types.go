package extraction

import "time"

// Method identifies which extractor produced a FinalReceipt
type Method string

const (
	MethodLocal Method = "local"
	MethodCloud Method = "cloud"
)

// LineItem is a single purchased item as read from a receipt.
// Malformed items (negative price, too many decimals) are allowed here and
// caught by the Validator.
type LineItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  float64 `json:"quantity"`
}

// ExtractionAttempt is the output of one local extraction call
type ExtractionAttempt struct {
	Success         bool       `json:"success"`
	RawConfidence   float64    `json:"raw_confidence"`
	MerchantName    string     `json:"merchant_name,omitempty"`
	LineItems       []LineItem `json:"line_items"`
	TotalAmount     *float64   `json:"total_amount,omitempty"`
	CurrencyCode    string     `json:"currency_code,omitempty"`
	TransactionDate string     `json:"transaction_date,omitempty"`
	RawOCRText      string     `json:"raw_ocr_text,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// Total returns the stated total and whether one was extracted
func (a *ExtractionAttempt) Total() (float64, bool) {
	if a == nil || a.TotalAmount == nil {
		return 0, false
	}
	return *a.TotalAmount, true
}

// ValidationMetrics are the per-signal results derived from an attempt
type ValidationMetrics struct {
	HasMerchantName   bool    `json:"has_merchant_name"`
	HasTotal          bool    `json:"has_total"`
	HasItems          bool    `json:"has_items"`
	HasDate           bool    `json:"has_date"`
	ArithmeticMatches bool    `json:"arithmetic_matches"`
	PricesReasonable  bool    `json:"prices_reasonable"`
	TextQualityScore  float64 `json:"text_quality_score"`
}

// ValidationResult is the verdict for a single attempt
type ValidationResult struct {
	IsValid    bool              `json:"is_valid"`
	Confidence float64           `json:"confidence"`
	Issues     []string          `json:"issues"`
	Metrics    ValidationMetrics `json:"metrics"`
}

// FinalItem is a receipt line with its corrected product name
type FinalItem struct {
	Name           string  `json:"name"`
	NormalizedName string  `json:"normalized_name"`
	UnitPrice      float64 `json:"unit_price"`
	Quantity       float64 `json:"quantity"`
}

// FinalReceipt is the only entity handed across the pipeline boundary.
// It is built once and never modified afterwards.
type FinalReceipt struct {
	ID                     string      `json:"id"`
	MerchantName           string      `json:"merchant_name"`
	NormalizedMerchantName string      `json:"normalized_merchant_name"`
	Items                  []FinalItem `json:"items"`
	CurrencyCode           string      `json:"currency_code"`
	TotalAmount            float64     `json:"total_amount"`
	TransactionDate        string      `json:"transaction_date,omitempty"`
	ExtractionMethod       Method      `json:"extraction_method"`
	CreatedAt              time.Time   `json:"created_at"`
}

// Result has the same shape for the pipeline and for the cloud collaborator:
// exactly one of Receipt or Error is meaningful.
type Result struct {
	Success bool          `json:"success"`
	Receipt *FinalReceipt `json:"receipt,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Succeeded wraps a receipt in a successful Result
func Succeeded(r *FinalReceipt) *Result {
	return &Result{Success: true, Receipt: r}
}

// Failed builds an unsuccessful Result
func Failed(msg string) *Result {
	return &Result{Success: false, Error: msg}
}
