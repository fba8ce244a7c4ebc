package receipt

import (
	"time"

	"github.com/zombor/receipt-pipeline/internal/catalog"
	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// StoredReceipt is a pipeline receipt as it is kept on disk. The embedded
// FinalReceipt is stored as produced and never modified.
type StoredReceipt struct {
	*extraction.FinalReceipt

	UserID      string `json:"user_id"`
	UserCity    string `json:"user_city,omitempty"`
	ImageFile   string `json:"image_file"`
	ContentType string `json:"content_type"`
	// ProductMatches has one catalog match per receipt item, in item order
	ProductMatches []catalog.Match `json:"product_matches"`
	StoredAt       time.Time       `json:"stored_at"`
}

// ScanRequest is one receipt image submitted for extraction
type ScanRequest struct {
	ImageBase64 string `json:"image_base64"`
	UserID      string `json:"user_id"`
	UserCity    string `json:"user_city,omitempty"`
}
