package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// LocalExtractor is the fast on-device extraction path
type LocalExtractor interface {
	// Available reports whether the OCR engine can be used
	Available() bool

	// ExtractReceiptData reads a receipt image. A receipt that could not be
	// read is reported through the attempt's Success flag.
	ExtractReceiptData(ctx context.Context, imageBase64 string) (*extraction.ExtractionAttempt, error)
}

// CloudParser is the slower, more reliable AI extraction path
type CloudParser interface {
	// ParseReceipt extracts a complete receipt. A model answer that could not be
	// used is an unsuccessful Result; transport failures are errors.
	ParseReceipt(ctx context.Context, imageBase64, userID, userCity string) (*extraction.Result, error)
}

// DecodeImage decodes base64 image data, with or without a data URL prefix,
// and sniffs its content type.
func DecodeImage(imageBase64 string) ([]byte, string, error) {
	payload := strings.TrimSpace(imageBase64)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, "", fmt.Errorf("image data is empty")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decoding base64 image: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image data is empty")
	}

	contentType := http.DetectContentType(data)
	if isHEICFormat(data) {
		contentType = "image/heic"
	}
	return data, contentType, nil
}

// decodeToPNG decodes base64 image data and converts it to PNG
func decodeToPNG(imageBase64 string) ([]byte, error) {
	data, contentType, err := DecodeImage(imageBase64)
	if err != nil {
		return nil, err
	}
	return prepareImageData(data, contentType)
}
